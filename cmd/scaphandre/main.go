// Copyright (C) 2024 The scaphandre Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	scaphandre "github.com/hubblo-org/scaphandre"
	"github.com/hubblo-org/scaphandre/internal/log"
	"github.com/hubblo-org/scaphandre/internal/version"
)

type flags struct {
	sensor       string
	timeout      time.Duration
	step         time.Duration
	stepNanos    int64
	qemu         bool
	containers   bool
	topConsumers int
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "scaphandre",
		Short: "Host-level software power meter",
		Long: `scaphandre periodically samples RAPL-style energy counters and attributes
host power consumption to individual processes, printing a line per tick.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}

	root.Flags().StringVar(&f.sensor, "sensor", "", "sensor backend to use: powercap, msr or debug (default: platform's native sensor)")
	root.Flags().DurationVar(&f.timeout, "timeout", 0, "stop after this duration (0 = one-shot: a single tick, then exit)")
	root.Flags().DurationVar(&f.step, "step", 2*time.Second, "seconds between measurement ticks")
	root.Flags().Int64Var(&f.stepNanos, "step-nanos", 0, "nanosecond component added to --step (must be < 1e9)")
	root.Flags().BoolVar(&f.qemu, "qemu", false, "accepted but has no effect: the stdout output carries no VM-name label")
	root.Flags().BoolVar(&f.containers, "containers", false, "accepted but has no effect: no container metadata is added")
	root.Flags().IntVar(&f.topConsumers, "top", 10, "number of top power-consuming processes to report per tick")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(f flags) error {
	logger := newLogger()
	log.SetLogger(logger)

	logger.Infof("%s", version.GetFullVersion())

	if f.stepNanos < 0 || f.stepNanos >= int64(time.Second) {
		return fmt.Errorf("--step-nanos must be in [0, 1e9): got %d", f.stepNanos)
	}
	step := f.step + time.Duration(f.stepNanos)
	if step <= 0 {
		return fmt.Errorf("--step (plus --step-nanos) must be positive")
	}

	sensor, err := selectSensor(f.sensor)
	if err != nil {
		return err
	}

	opts := []scaphandre.Option{scaphandre.WithLogger(logger)}
	if sensor != nil {
		opts = append(opts, scaphandre.WithSensor(sensor))
	}

	meter, err := scaphandre.New(opts...)
	if err != nil {
		logger.Errorf("failed to initialize metering: %v", err)
		return err
	}

	exporter := &stdoutExporter{out: os.Stdout}
	selfPID := os.Getpid()

	// Guards meter.Refresh/Snapshot against a concurrent tick firing
	// while a previous export is still running.
	var mu sync.Mutex

	if f.timeout <= 0 {
		// Absent/empty --timeout means one-shot: a single tick, then exit.
		mu.Lock()
		tick(meter, exporter, f.topConsumers, selfPID, logger)
		mu.Unlock()
		return nil
	}

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	ticker := time.NewTicker(step)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			logger.Info("timeout reached, exiting cleanly")
			return nil
		case <-ticker.C:
			mu.Lock()
			tick(meter, exporter, f.topConsumers, selfPID, logger)
			mu.Unlock()
		}
	}
}

func tick(meter *scaphandre.Meter, exporter scaphandre.Exporter, topConsumers, selfPID int, logger log.Logger) {
	if err := meter.Refresh(); err != nil {
		logger.Warnf("refresh failed: %v", err)
		return
	}
	snapshot := meter.Snapshot(topConsumers, selfPID)
	if err := exporter.Export(snapshot); err != nil {
		logger.Errorf("export failed: %v", err)
	}
}

func selectSensor(name string) (scaphandre.Sensor, error) {
	switch name {
	case "":
		return nil, nil
	case "powercap":
		return scaphandre.NewPowercapSensor(1024, 1024, 1024, 5), nil
	case "msr":
		return scaphandre.NewMsrSensor(1024, 1024, 1024, 5), nil
	case "debug":
		return scaphandre.NewDebugSensor(1024, "/proc", 0, 1000), nil
	default:
		return nil, fmt.Errorf("unknown --sensor %q: want powercap, msr or debug", name)
	}
}

// kitLogger adapts a github.com/go-kit/log.Logger, filtered through
// level.NewFilter, to this module's internal/log.Logger interface.
type kitLogger struct {
	logger kitlog.Logger
}

func newLogger() *kitLogger {
	base := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	base = kitlog.With(base, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.Caller(5))
	return &kitLogger{logger: level.NewFilter(base, level.AllowAll())}
}

func (l *kitLogger) Errorf(format string, args ...interface{}) {
	level.Error(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

func (l *kitLogger) Error(args ...interface{}) {
	level.Error(l.logger).Log("msg", fmt.Sprint(args...))
}

func (l *kitLogger) Debugf(format string, args ...interface{}) {
	level.Debug(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

func (l *kitLogger) Debug(args ...interface{}) {
	level.Debug(l.logger).Log("msg", fmt.Sprint(args...))
}

func (l *kitLogger) Warnf(format string, args ...interface{}) {
	level.Warn(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

func (l *kitLogger) Warn(args ...interface{}) {
	level.Warn(l.logger).Log("msg", fmt.Sprint(args...))
}

func (l *kitLogger) Infof(format string, args ...interface{}) {
	level.Info(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

func (l *kitLogger) Info(args ...interface{}) {
	level.Info(l.logger).Log("msg", fmt.Sprint(args...))
}
