package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"das-core/params"
	"das-core/utils"
)

func main() {
	cfg := LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand(&cfg, os.Stdout).Run(ctx, os.Args); err != nil && !errors.Is(err, context.Canceled) {
		_, _ = os.Stderr.WriteString("ERROR: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func newCommand(cfg *Config, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "dasctl",
		Usage: "Tesla driver-assistance decode and control loop",
		Commands: []*cli.Command{
			runCommand(cfg),
			paramsCommand(cfg, out),
			signalsCommand(cfg, out),
		},
	}
}

func runCommand(cfg *Config) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the 100 Hz control loop against the configured CAN interfaces",
		Flags: []cli.Flag{
			&cli.StringFlag{Category: "Buses", Name: "party-iface", Usage: "SocketCAN interface of the party bus", Value: cfg.PartyIface},
			&cli.StringFlag{Category: "Buses", Name: "vehicle-iface", Usage: "SocketCAN interface of the vehicle bus", Value: cfg.VehicleIface},
			&cli.StringFlag{Category: "Buses", Name: "cam-iface", Usage: "SocketCAN interface of the autopilot side (empty: party interface)", Value: cfg.CamIface},
			&cli.StringFlag{Category: "Inputs", Name: "scenario", Aliases: []string{"s"}, Usage: "Planner scenario JSON", Value: cfg.ScenarioPath},
			&cli.StringFlag{Category: "Inputs", Name: "params", Usage: "Params directory holding the session toggles", Value: cfg.ParamsRoot},
			&cli.StringFlag{Category: "Outputs", Name: "export", Usage: "Comma separated export backends (msgq,redis,mqtt,http)", Value: strings.Join(cfg.Export, ",")},
			&cli.StringFlag{Category: "Logging", Name: "log-level", Usage: "trace|debug|info|warn|error|critical", Value: cfg.LogLevel},
			&cli.StringFlag{Category: "Logging", Name: "log-file", Usage: "Log file, empty for stdout only", Value: cfg.LogFile},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg.PartyIface = cmd.String("party-iface")
			cfg.VehicleIface = cmd.String("vehicle-iface")
			cfg.CamIface = cmd.String("cam-iface")
			cfg.ScenarioPath = cmd.String("scenario")
			cfg.ParamsRoot = cmd.String("params")
			cfg.Export = splitList(cmd.String("export"))
			cfg.LogLevel = cmd.String("log-level")
			cfg.LogFile = cmd.String("log-file")
			return run(ctx, *cfg)
		},
	}
}

func run(ctx context.Context, cfg Config) error {
	log, closer, err := utils.NewLogger(cfg.LogFile, utils.ParseLevel(cfg.LogLevel), true)
	if err != nil {
		return err
	}
	defer closer.Close()

	profile := params.LoadProfile(params.New(cfg.ParamsRoot))

	runner, err := NewRunner(ctx, cfg, profile, log)
	if err != nil {
		utils.Critical(log, "startup failed", "error", err)
		return err
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		utils.Critical(log, "run failed", "error", err)
		return err
	}
	return nil
}

func paramsCommand(cfg *Config, out io.Writer) *cli.Command {
	rootFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "params", Usage: "Params directory", Value: cfg.ParamsRoot}
	}
	open := func(cmd *cli.Command) *params.Params {
		return params.New(cmd.String("params"))
	}

	return &cli.Command{
		Name:  "params",
		Usage: "Read and write the session toggles",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List every stored key",
				Flags: []cli.Flag{rootFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					keys, err := open(cmd).Keys()
					if err != nil {
						return err
					}
					for _, k := range keys {
						fmt.Fprintln(out, k)
					}
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "Print the value of a key",
				ArgsUsage: "<key>",
				Flags:     []cli.Flag{rootFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return errors.New("usage: params get <key>")
					}
					data, err := open(cmd).Get(cmd.Args().First())
					if err != nil {
						return err
					}
					if params.IsString(data) {
						fmt.Fprintln(out, string(data))
					} else {
						fmt.Fprintf(out, "%x\n", data)
					}
					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "Set a key; toggles take 0 or 1",
				ArgsUsage: "<key> <value>",
				Flags:     []cli.Flag{rootFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 2 {
						return errors.New("usage: params set <key> <value>")
					}
					p := open(cmd)
					if err := p.EnsureDirectories(); err != nil {
						return err
					}
					return p.Put(cmd.Args().Get(0), []byte(cmd.Args().Get(1)))
				},
			},
			{
				Name:  "profile",
				Usage: "Show the session profile the toggles resolve to",
				Flags: []cli.Flag{rootFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					p := params.LoadProfile(open(cmd))
					fmt.Fprintf(out, "engagement=%s torque_blending=%t own_longitudinal=%t acc_first=%t combo=%t bsm=%t\n",
						p.Engagement, p.TorqueBlending, p.OwnLongitudinal, p.AccFirst, p.Combo, p.EnableBSM)
					return nil
				},
			},
		},
	}
}

func signalsCommand(cfg *Config, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "signals",
		Usage: "List the frames of the party and vehicle signal maps",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "party-map", Usage: "Party bus signal map (.dbc or .csv)", Value: cfg.PartyMap},
			&cli.StringFlag{Name: "vehicle-map", Usage: "Vehicle bus signal map (.dbc or .csv)", Value: cfg.VehicleMap},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Also list every signal"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c := *cfg
			c.PartyMap = cmd.String("party-map")
			c.VehicleMap = cmd.String("vehicle-map")
			party, vehicle, err := loadMaps(c)
			if err != nil {
				return err
			}
			printMap(out, "party", party, cmd.Bool("verbose"))
			printMap(out, "vehicle", vehicle, cmd.Bool("verbose"))
			return nil
		},
	}
}

func printMap(out io.Writer, bus string, m *utils.CANMap, verbose bool) {
	for _, name := range m.FrameNames() {
		fd := m.ByName[name]
		fmt.Fprintf(out, "%-8s 0x%03X %-28s dlc=%d signals=%d\n", bus, fd.ID, fd.Name, fd.DLC, len(fd.Signals))
		if !verbose {
			continue
		}
		for _, s := range fd.Signals {
			fmt.Fprintf(out, "         %-36s start=%d len=%d factor=%g offset=%g unit=%q\n",
				s.Name, s.StartBit, s.BitLength, s.Factor, s.Offset, s.Unit)
		}
	}
}
