// Program antcmp runs antenna comparison sessions: it records which antenna
// was in use when, correlates the WSJT-X decode log and PSKReporter reception
// reports against those intervals, and publishes a per-band comparison
// artifact. Subcommands mirror the session lifecycle (define, start, use,
// pause, resume, stop, note, analyze) plus listing and live-view tooling.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"antcmp/antenna"
	"antcmp/artifact"
	"antcmp/config"
	"antcmp/session"
	"antcmp/solarweather"
)

const defaultConfigPath = "antcmp.yaml"

func usage() {
	fmt.Fprintf(os.Stderr, `usage: antcmp [-config file] <command> [args]

Session:
  define <label> [description]   register an antenna
  antennas                       list registered antennas
  start [name]                   start a comparison session
  use <label>                    switch the active antenna
  pause                          pause the session
  resume                         resume a paused session
  note <text...>                 record an observation
  stop                           end the session
  status                         show session state
  log                            print the raw event log
  clear                          truncate the event log

Analysis:
  analyze                        correlate logs and publish the comparison
  comparisons                    list published comparisons
  report <id>                    print a stored comparison report
  addnote <id> <text...>         attach a note to a published comparison

Live:
  watch                          live session view (TUI)
  solar                          fetch and interpret current solar conditions
`)
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "configuration file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "antcmp: %v\n", err)
		os.Exit(1)
	}

	fanout, err := setupLogging(cfg.Logging, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "antcmp: logging: %v\n", err)
	}
	log.SetFlags(0)
	log.SetOutput(fanout)
	defer fanout.Close()

	app := &app{
		cfg:       cfg,
		store:     session.NewStore(cfg.SessionLogPath()),
		registry:  antenna.NewRegistry(cfg.AntennasPath()),
		artifacts: artifact.NewWriter(cfg.Paths.DataDir),
		fanout:    fanout,
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := app.run(cmd, args); err != nil {
		fmt.Fprintf(os.Stderr, "antcmp: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to built-in defaults when
// the default path does not exist. An explicitly named missing file is still
// an error.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == defaultConfigPath {
		return config.Default(), nil
	}
	return config.Load(path)
}

type app struct {
	cfg       *config.Config
	store     *session.Store
	registry  *antenna.Registry
	artifacts *artifact.Writer
	fanout    *logFanout
}

func (a *app) run(cmd string, args []string) error {
	now := time.Now().UTC()
	switch cmd {
	case "define":
		return a.cmdDefine(args, now)
	case "antennas":
		return a.cmdAntennas()
	case "start":
		return a.cmdStart(args, now)
	case "use":
		return a.cmdUse(args, now)
	case "pause":
		_, err := a.store.Pause(now)
		if err == nil {
			fmt.Println("Session paused.")
		}
		return err
	case "resume":
		_, err := a.store.Resume(now)
		if err == nil {
			fmt.Println("Session resumed.")
		}
		return err
	case "note":
		if len(args) == 0 {
			return fmt.Errorf("usage: antcmp note <text>")
		}
		_, err := a.store.Note(strings.Join(args, " "), now)
		return err
	case "stop":
		_, err := a.store.Stop(now)
		if err == nil {
			fmt.Println("Session stopped. Run: antcmp analyze")
		}
		return err
	case "status":
		return a.cmdStatus(now)
	case "log":
		return a.cmdLog()
	case "clear":
		return a.store.Clear()
	case "analyze":
		return a.cmdAnalyze(context.Background(), now)
	case "comparisons":
		return a.cmdComparisons()
	case "report":
		if len(args) != 1 {
			return fmt.Errorf("usage: antcmp report <id>")
		}
		text, err := a.artifacts.Report(args[0])
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	case "addnote":
		if len(args) < 2 {
			return fmt.Errorf("usage: antcmp addnote <id> <text>")
		}
		return a.artifacts.AttachNote(args[0], strings.Join(args[1:], " "), now)
	case "watch":
		return a.cmdWatch()
	case "solar":
		return a.cmdSolar(context.Background())
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) cmdDefine(args []string, now time.Time) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: antcmp define <label> [description]")
	}
	label := strings.ToLower(args[0])
	description := strings.Join(args[1:], " ")
	existed, err := a.registry.Define(label, description, now)
	if err != nil {
		return err
	}
	if existed {
		fmt.Printf("Updated antenna %q.\n", label)
	} else {
		fmt.Printf("Defined antenna %q.\n", label)
	}
	return nil
}

func (a *app) cmdAntennas() error {
	labels, err := a.registry.Labels()
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		fmt.Println("No antennas defined. Use: antcmp define <label> [description]")
		return nil
	}
	for _, label := range labels {
		def, _, err := a.registry.Get(label)
		if err != nil {
			return err
		}
		if def.Description != "" {
			fmt.Printf("  %-12s %s\n", label, def.Description)
		} else {
			fmt.Printf("  %s\n", label)
		}
	}
	return nil
}

func (a *app) cmdStart(args []string, now time.Time) error {
	name := now.Format("2006-01-02")
	if len(args) > 0 {
		name = strings.Join(args, " ")
	}

	// Best-effort solar snapshot; a dead feed never blocks the session.
	var solar map[string]string
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if data, err := solarweather.NewFetcher().Fetch(ctx); err != nil {
		log.Printf("solar snapshot unavailable: %v", err)
	} else {
		solar = data
	}

	if _, err := a.store.Start(name, solar, now); err != nil {
		return err
	}
	fmt.Printf("Session %q started at %s.\n", name, now.Format("15:04:05 UTC"))
	fmt.Println("Select the first antenna with: antcmp use <label>")
	return nil
}

func (a *app) cmdUse(args []string, now time.Time) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: antcmp use <label>")
	}
	label := strings.ToLower(args[0])
	description := ""
	if def, ok, err := a.registry.Get(label); err != nil {
		return err
	} else if ok {
		description = def.Description
	} else {
		fmt.Printf("Note: antenna %q is not defined; recording it anyway.\n", label)
	}
	if _, err := a.store.Use(label, "", description, now); err != nil {
		return err
	}
	fmt.Printf("Now using %s.\n", label)
	return nil
}

func (a *app) cmdStatus(now time.Time) error {
	st, err := a.store.Status(now)
	if err != nil {
		return err
	}
	if !st.Active {
		fmt.Println("No active session.")
		return nil
	}
	fmt.Printf("Session:  %s (started %s, elapsed %s)\n",
		st.Name, st.StartTime.Format("2006-01-02 15:04 UTC"), st.Elapsed.Round(time.Second))
	if st.Paused {
		fmt.Println("State:    PAUSED")
	} else {
		fmt.Println("State:    running")
	}
	if st.CurrentAntenna != "" {
		fmt.Printf("Antenna:  %s (%s on this antenna)\n",
			st.CurrentAntenna, st.AntennaElapsed.Round(time.Second))
	} else {
		fmt.Println("Antenna:  none selected")
	}
	if len(st.Solar) > 0 {
		fmt.Printf("Solar:    %s\n", solarweather.Interpret(st.Solar).Summary)
	}
	for _, note := range st.Notes {
		fmt.Printf("Note:     %s\n", note)
	}
	return nil
}

func (a *app) cmdLog() error {
	events, err := a.store.Events()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("Event log is empty.")
		return nil
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s  %-7s", ev.Time.Format("2006-01-02 15:04:05"), ev.Kind)
		switch ev.Kind {
		case session.EventStart:
			line += " " + ev.Name
		case session.EventUse:
			line += " " + ev.Antenna
		case session.EventNote:
			line += " " + ev.Text
		}
		fmt.Println(line)
	}
	return nil
}

func (a *app) cmdComparisons() error {
	infos, err := a.artifacts.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No comparisons published yet.")
		return nil
	}
	fmt.Printf("Found %s comparison(s):\n", humanize.Comma(int64(len(infos))))
	for _, info := range infos {
		line := "  " + info.ID
		if !info.Start.IsZero() {
			line += "  " + info.Start.Format("2006-01-02 15:04")
			if !info.End.IsZero() {
				line += " - " + info.End.Format("15:04 UTC")
			}
		}
		if len(info.Antennas) > 0 {
			line += "  [" + strings.Join(info.Antennas, " vs ") + "]"
		}
		if !info.HasReport {
			line += "  (no report)"
		}
		fmt.Println(line)
	}
	return nil
}

func (a *app) cmdSolar(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	data, err := solarweather.NewFetcher().Fetch(ctx)
	if err != nil {
		return err
	}
	cond := solarweather.Interpret(data)
	fmt.Printf("SFI %s  A %s  K %s\n", data["solarflux"], data["aindex"], data["kindex"])
	fmt.Printf("HF:    %s\n", cond.HF)
	fmt.Printf("VHF:   %s\n", cond.VHF)
	fmt.Printf("Noise: %s\n", cond.Noise)
	fmt.Println(cond.Summary)
	return nil
}

// interactive reports whether stdout is a terminal; the watch view refuses to
// start without one.
func interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
