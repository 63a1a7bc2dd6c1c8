package tasks

import (
	"blogging/logging"
	"blogging/storage"
	"context"
	"fmt"

	"github.com/RichardKnop/machinery/v1"
	"github.com/RichardKnop/machinery/v1/config"
	machinerylog "github.com/RichardKnop/machinery/v1/log"
	machinerytasks "github.com/RichardKnop/machinery/v1/tasks"
)

const (
	defaultQueue = "blogging_tasks"
	consumerTag  = "blogging_worker"
)

func brokerConfig(brokerUrl string) *config.Config {
	return &config.Config{
		DefaultQueue:    defaultQueue,
		ResultsExpireIn: 3600,
		Broker:          brokerUrl,
		ResultBackend:   brokerUrl,
		Redis: &config.RedisConfig{
			MaxIdle:                3,
			IdleTimeout:            240,
			ReadTimeout:            15,
			WriteTimeout:           15,
			ConnectTimeout:         15,
			NormalTasksPollPeriod:  1000,
			DelayedTasksPollPeriod: 500,
		},
	}
}

// SetLogger routes machinery's internal logging through logger.
func SetLogger(logger logging.Logger) {
	l := logger.With("component", "machinery")
	machinerylog.SetDebug(logging.PrintfAdapter{Logger: l, Level: "debug"})
	machinerylog.SetInfo(logging.PrintfAdapter{Logger: l, Level: "info"})
	machinerylog.SetWarning(logging.PrintfAdapter{Logger: l, Level: "warn"})
	machinerylog.SetError(logging.PrintfAdapter{Logger: l, Level: "error"})
	machinerylog.SetFatal(logging.PrintfAdapter{Logger: l, Level: "error"})
}

// taskHandlers binds the registered task names to s.
func taskHandlers(s storage.PostStorage) map[string]interface{} {
	return map[string]interface{}{
		PurgeUserPostsTask: func(userId string) (int, error) {
			return PurgeUserPosts(context.Background(), s, userId)
		},
	}
}

func startServer(brokerUrl string, s storage.PostStorage) (*machinery.Server, error) {
	server, err := machinery.NewServer(brokerConfig(brokerUrl))
	if err != nil {
		return nil, err
	}
	return server, server.RegisterTasks(taskHandlers(s))
}

func purgeUserPostsSignature(userId string) *machinerytasks.Signature {
	return &machinerytasks.Signature{
		Name: PurgeUserPostsTask,
		Args: []machinerytasks.Arg{
			{
				Type:  "string",
				Value: userId,
			},
		},
	}
}

// Machinery sends tasks to the broker for a worker to execute.
type Machinery struct {
	server *machinery.Server
	logger logging.Logger
}

func NewMachinery(brokerUrl string, logger logging.Logger) (*Machinery, error) {
	server, err := machinery.NewServer(brokerConfig(brokerUrl))
	if err != nil {
		return nil, fmt.Errorf("machinery server: %w", err)
	}
	return &Machinery{server: server, logger: logger}, nil
}

func (d *Machinery) PurgeUserPosts(ctx context.Context, userId string) error {
	res, err := d.server.SendTaskWithContext(ctx, purgeUserPostsSignature(userId))
	if err != nil {
		return fmt.Errorf("send %s: %w", PurgeUserPostsTask, err)
	}
	d.logger.Info(ctx, "scheduled task", "task", PurgeUserPostsTask, "taskId", res.Signature.UUID, "userId", userId)
	return nil
}

// RunWorker consumes tasks until the worker is stopped.
func RunWorker(brokerUrl string, s storage.PostStorage, logger logging.Logger) error {
	server, err := startServer(brokerUrl, s)
	if err != nil {
		return err
	}

	worker := server.NewWorker(consumerTag, 0)
	worker.SetErrorHandler(func(err error) {
		logger.Error(context.Background(), "task failed", "error", err)
	})
	return worker.Launch()
}
