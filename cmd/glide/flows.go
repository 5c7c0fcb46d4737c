package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rahul/glide/internal/flow"
	"github.com/rahul/glide/internal/gateway"
	"github.com/rahul/glide/internal/store"
	"github.com/rahul/glide/internal/types"
)

var (
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
	cyan  = color.New(color.FgCyan)
)

// terminalFormatter renders flows with terminal colours.
func terminalFormatter() gateway.TextFormatter {
	return gateway.TextFormatter{
		Escape: func(s string) string { return s },
		Bold:   func(s string) string { return bold.Sprint(s) },
		Italic: func(s string) string { return faint.Sprint(s) },
	}
}

// printProgress shows coordinator status lines; raw streamed chunks are
// echoed as they arrive.
func printProgress(msg string) {
	if flow.IsStatusMessage(msg) {
		fmt.Println(cyan.Sprint("… " + msg))
		return
	}
	fmt.Print(faint.Sprint(msg))
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

func printFlow(ctx context.Context, a *app, flowID string) error {
	fw, err := a.flows.FlowWithSteps(ctx, flowID)
	if err != nil {
		return err
	}
	fmt.Println(terminalFormatter().Flow(fw, flow.ComputeStats(fw.Steps)))
	return nil
}

func stepArg(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, types.NewError(types.ErrInvalidInput, fmt.Sprintf("%q is not a step number.", arg))
	}
	return n, nil
}

var newCmd = &cobra.Command{
	Use:   "new TASK...",
	Short: "Break a task down into a new flow",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			f, err := a.flows.CreateFlow(ctx, localOwner, strings.Join(args, " "), printProgress)
			if err != nil {
				return err
			}
			fmt.Println()
			return printFlow(ctx, a, f.ID)
		})
	},
}

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List your flows, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			flows, err := a.flows.Flows(ctx, localOwner)
			if err != nil {
				return err
			}
			stats := make(map[string]flow.Stats, len(flows))
			for _, f := range flows {
				s, err := a.flows.Stats(ctx, f.ID)
				if err != nil {
					return err
				}
				stats[f.ID] = s
			}
			fmt.Println(terminalFormatter().FlowList(flows, stats))
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show [FLOW]",
	Short: "Show a flow and its steps",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := flowRef
		if len(args) == 1 {
			ref = args[0]
		}
		return withApp(func(ctx context.Context, a *app) error {
			f, err := a.flows.ResolveFlow(ctx, localOwner, ref)
			if err != nil {
				return err
			}
			return printFlow(ctx, a, f.ID)
		})
	},
}

var splitCmd = &cobra.Command{
	Use:   "split STEP",
	Short: "Split a step into two smaller ones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := stepArg(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			f, err := a.flows.ResolveFlow(ctx, localOwner, flowRef)
			if err != nil {
				return err
			}
			st, err := a.flows.StepAt(ctx, f.ID, n)
			if err != nil {
				return err
			}
			if _, err := a.flows.SplitStep(ctx, st.ID, printProgress); err != nil {
				return err
			}
			fmt.Println()
			return printFlow(ctx, a, f.ID)
		})
	},
}

var doneCmd = &cobra.Command{
	Use:   "done STEP",
	Short: "Tick a step off",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		undo, _ := cmd.Flags().GetBool("undo")
		n, err := stepArg(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			f, err := a.flows.ResolveFlow(ctx, localOwner, flowRef)
			if err != nil {
				return err
			}
			st, err := a.flows.StepAt(ctx, f.ID, n)
			if err != nil {
				return err
			}
			if _, err := a.flows.ToggleStep(ctx, st.ID, !undo); err != nil {
				return err
			}
			stats, err := a.flows.Stats(ctx, f.ID)
			if err != nil {
				return err
			}
			switch {
			case undo:
				fmt.Printf("%s Step %d reopened.\n", color.YellowString("↩"), n)
			case stats.CompletedSteps == stats.TotalSteps:
				fmt.Printf("%s Flow complete! Every step is done.\n", color.GreenString("🎉"))
				return nil
			default:
				fmt.Printf("%s Step %d done.\n", color.GreenString("✓"), n)
			}
			fmt.Println(faint.Sprintf("%d of %d steps done (%d%%)",
				stats.CompletedSteps, stats.TotalSteps, stats.CompletionPercentage))
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename TITLE...",
	Short: "Rename a flow",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			f, err := a.flows.ResolveFlow(ctx, localOwner, flowRef)
			if err != nil {
				return err
			}
			renamed, err := a.flows.RenameFlow(ctx, f.ID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Printf("%s Renamed to %s\n", color.GreenString("✓"), bold.Sprint(renamed.Title))
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm FLOW",
	Short: "Delete a flow and its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			f, err := a.flows.ResolveFlow(ctx, localOwner, args[0])
			if err != nil {
				return err
			}
			if err := a.flows.DeleteFlow(ctx, f.ID); err != nil {
				return err
			}
			fmt.Printf("%s Deleted %s\n", color.GreenString("✓"), f.Title)
			return nil
		})
	},
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show the next unfinished step of every flow",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			next, err := a.flows.TodaysPath(ctx, localOwner)
			if err != nil {
				return err
			}
			fmt.Println(terminalFormatter().TodaysPath(next))
			return nil
		})
	},
}

// exportedFlow is the YAML shape written by 'glide export'.
type exportedFlow struct {
	ID       string         `yaml:"id"`
	Title    string         `yaml:"title"`
	Created  string         `yaml:"created_at"`
	Progress flow.Stats     `yaml:"progress"`
	Steps    []exportedStep `yaml:"steps"`
}

type exportedStep struct {
	Number        int    `yaml:"number"`
	Title         string `yaml:"title"`
	TimeEstimate  string `yaml:"time_estimate"`
	Description   string `yaml:"description"`
	CompletionCue string `yaml:"completion_cue"`
	Done          bool   `yaml:"done"`
}

func exportFlow(fw *store.FlowWithSteps) exportedFlow {
	out := exportedFlow{
		ID:       fw.Flow.ID,
		Title:    fw.Flow.Title,
		Created:  fw.Flow.CreatedAt.Format("2006-01-02 15:04"),
		Progress: flow.ComputeStats(fw.Steps),
		Steps:    make([]exportedStep, 0, len(fw.Steps)),
	}
	for _, st := range fw.Steps {
		out.Steps = append(out.Steps, exportedStep{
			Number:        st.StepNumber,
			Title:         st.Title,
			TimeEstimate:  st.TimeEstimate,
			Description:   st.Description,
			CompletionCue: st.CompletionCue,
			Done:          st.IsCompleted,
		})
	}
	return out
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a flow as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")
		return withApp(func(ctx context.Context, a *app) error {
			f, err := a.flows.ResolveFlow(ctx, localOwner, flowRef)
			if err != nil {
				return err
			}
			fw, err := a.flows.FlowWithSteps(ctx, f.ID)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(exportFlow(fw))
			if err != nil {
				return fmt.Errorf("encoding flow: %w", err)
			}
			if outPath == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0644); err != nil {
				return err
			}
			fmt.Printf("%s Wrote %s\n", color.GreenString("✓"), outPath)
			return nil
		})
	},
}
