// Command fieldctrld runs the real-time control core standalone: it
// wires the resource store, staged scheduler, pose filter bank, step
// planner, walking engine, and actuator arbiter together and ticks the
// scheduler until the process is signalled to stop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/spl-robotics/fieldctrld/config"
	"github.com/spl-robotics/fieldctrld/logging"
	"github.com/spl-robotics/fieldctrld/resource"
	"github.com/spl-robotics/fieldctrld/robotapi"
	"github.com/spl-robotics/fieldctrld/scheduler"
)

func main() {
	configPath := flag.String("config", "/etc/fieldctrld/core.yaml", "path to the core's YAML configuration")
	logPath := flag.String("log-file", "", "rotating log file path; stdout only if empty")
	flag.Parse()

	logger := newProcessLogger(*logPath)

	cfg, err := loadConfig(logger, *configPath)
	if err != nil {
		logger.Errorw("loading configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collaborators := Collaborators{
		// The concrete joint/LED hardware bus and its sensor/referee
		// transports are collaborator concerns outside this core
		// (spec.md §1's non-goals); devNull stands in for them so the
		// binary runs standalone until a real transport is wired here.
		Sensors:   devNullSensors{},
		Actuators: devNullActuators{logger: logger.Sublogger("actuators")},
		Vision:    devNullVision{},
	}

	sched, err := Build(logger, cfg, robotapi.Pose{}, collaborators)
	if err != nil {
		logger.Errorw("building runtime", "err", err)
		os.Exit(1)
	}

	if err := sched.RunStartup(ctx); err != nil {
		logger.Errorw("startup", "err", err)
		os.Exit(1)
	}

	logger.Infow("fieldctrld running", "cycle_period", cfg.Cycle.Period)
	if err := sched.Run(ctx); err != nil {
		logger.Errorw("fatal cycle failure", "err", err)
		emitSafeFrame(ctx, logger, sched, collaborators.Actuators)
		os.Exit(1)
	}
}

// emitSafeFrame composes the final safe frame spec.md §7 requires on a
// fatal error — every motor unstiffened, positions held at their last
// known values — and writes it through the actuator sink before the
// process exits.
func emitSafeFrame(ctx context.Context, logger logging.Logger, sched *scheduler.Scheduler, sink robotapi.ActuatorSink) {
	handle, err := resource.GetShared[robotapi.ControlFrame](sched.Store())
	if err != nil {
		logger.Errorw("reading last control frame for safe frame", "err", err)
		return
	}
	last := handle.Get()
	handle.Release()

	if err := sink.WriteControlFrame(ctx, robotapi.SafeFrame(last.Positions)); err != nil {
		logger.Errorw("writing safe frame", "err", err)
	}
}

// newProcessLogger builds the process-wide root logger. Stdout always
// gets a line; when logPath is set, a second zapcore tee'd into a
// lumberjack-rotated file also gets one. The composed *zap.Logger is
// adopted into a logging.Logger via FromZapCompatible, since the
// rotating-file path needs zapcore's WriteSyncer plumbing rather than
// this package's own Appender interface.
func newProcessLogger(logPath string) logging.Logger {
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zapcore.InfoLevel),
	}
	if logPath != "" {
		rotator := &lumberjack.Logger{Filename: logPath, MaxSize: 50, MaxBackups: 3, MaxAge: 7, Compress: true}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), zapcore.InfoLevel))
	}

	zapLogger := zap.New(zapcore.NewTee(cores...)).Named("fieldctrld")
	return logging.FromZapCompatible(zapLogger.Sugar())
}

func loadConfig(logger logging.Logger, path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnw("configuration file not found, running on defaults", "path", path)
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(path)
}

// devNullSensors returns a zeroed sensor frame every cycle: a
// placeholder until a real transport is wired in above.
type devNullSensors struct{}

func (devNullSensors) ReadSensorFrame(context.Context) (robotapi.SensorFrame, error) {
	return robotapi.SensorFrame{}, nil
}

// devNullVision reports no correspondences: a placeholder until a real
// vision collaborator is wired in above.
type devNullVision struct{}

func (devNullVision) ReadVisionFrame(context.Context) (robotapi.VisionFrame, error) {
	return robotapi.VisionFrame{}, nil
}

// devNullActuators logs the control frame it would otherwise write to
// hardware: a placeholder until a real transport is wired in above.
type devNullActuators struct {
	logger logging.Logger
}

func (a devNullActuators) WriteControlFrame(_ context.Context, frame robotapi.ControlFrame) error {
	a.logger.Debugw("control frame", "legs", frame.Positions.Legs)
	return nil
}
