package logging

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// PrintfAdapter exposes a Logger through the Print/Fatal/Panic family that
// machinery's log package expects.
type PrintfAdapter struct {
	Logger Logger
	// Level is one of debug, info, warn or error.
	Level string
}

func (a PrintfAdapter) log(msg string) {
	msg = strings.TrimRight(msg, "\n")
	ctx := context.Background()
	switch a.Level {
	case "debug":
		a.Logger.Debug(ctx, msg)
	case "warn":
		a.Logger.Warn(ctx, msg)
	case "error":
		a.Logger.Error(ctx, msg)
	default:
		a.Logger.Info(ctx, msg)
	}
}

func (a PrintfAdapter) Print(v ...interface{}) {
	a.log(fmt.Sprint(v...))
}

func (a PrintfAdapter) Printf(format string, v ...interface{}) {
	a.log(fmt.Sprintf(format, v...))
}

func (a PrintfAdapter) Println(v ...interface{}) {
	a.log(fmt.Sprintln(v...))
}

func (a PrintfAdapter) Fatal(v ...interface{}) {
	a.Logger.Error(context.Background(), fmt.Sprint(v...))
	os.Exit(1)
}

func (a PrintfAdapter) Fatalf(format string, v ...interface{}) {
	a.Logger.Error(context.Background(), fmt.Sprintf(format, v...))
	os.Exit(1)
}

func (a PrintfAdapter) Fatalln(v ...interface{}) {
	a.Fatal(v...)
}

func (a PrintfAdapter) Panic(v ...interface{}) {
	s := fmt.Sprint(v...)
	a.Logger.Error(context.Background(), s)
	panic(s)
}

func (a PrintfAdapter) Panicf(format string, v ...interface{}) {
	s := fmt.Sprintf(format, v...)
	a.Logger.Error(context.Background(), s)
	panic(s)
}

func (a PrintfAdapter) Panicln(v ...interface{}) {
	a.Panic(v...)
}
