package main

import (
	"fmt"
	"log"
	"os"
	"slices"
	"sort"

	"github.com/spf13/cobra"

	"tarkovtracker.org/internal/tracker/metadata"
	"tarkovtracker.org/internal/tracker/progress"
	"tarkovtracker.org/internal/tracker/tasksort"
	"tarkovtracker.org/internal/upstream"
)

func graphCmd() *cobra.Command {
	var (
		dir      string
		mode     string
		lang     string
		overlayP string
		taskID   string
		moduleID string
		verbose  bool
		top      int
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Build the task and hideout graphs from local payloads and report on them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := metadata.Config{
				Mode:    mode,
				Lang:    lang,
				Fetcher: upstream.DirFetcher{Dir: dir},
			}
			if verbose {
				cfg.Logger = log.New(os.Stderr, "[metadata] ", log.LstdFlags)
			}
			if overlayP != "" {
				cfg.Overlay = fileOverlay{path: overlayP}
			}
			store := metadata.NewStore(cfg)
			if err := store.Initialize(cmd.Context()); err != nil {
				return err
			}
			snap := store.Snapshot()

			if taskID != "" {
				return printTask(snap, taskID)
			}
			if moduleID != "" {
				return printModule(snap, moduleID)
			}

			ranked := tasksort.Sort(snap.TaskList(), tasksort.ByImpact, tasksort.Desc, tasksort.Input{
				State:  progress.State{},
				Actors: []string{"self"},
			})
			if len(ranked) > top {
				ranked = ranked[:top]
			}
			if flagJSON {
				ids := make([]string, len(ranked))
				for i, t := range ranked {
					ids[i] = t.ID
				}
				return outputJSON(map[string]any{
					"version":     snap.Version,
					"tasks":       len(snap.Tasks.Tasks),
					"modules":     len(snap.Hideout.Modules),
					"errors":      snap.Errors,
					"overlay":     snap.Overlay,
					"renames":     snap.ObjectiveRenames,
					"mostBlocked": ids,
				})
			}

			fmt.Printf("%s mode=%s lang=%s version=%d overlay=%s\n", bold("dataset"), mode, lang, snap.Version, snap.Overlay.Status)
			taskEdges, moduleEdges := 0, 0
			if g := snap.Tasks.Graph; g != nil {
				taskEdges = g.EdgeCount()
			}
			if g := snap.Hideout.Graph; g != nil {
				moduleEdges = g.EdgeCount()
			}
			fmt.Printf("  tasks    %s (%d edges)\n", green(len(snap.Tasks.Tasks)), taskEdges)
			fmt.Printf("  modules  %s (%d edges, %d crafts)\n", green(len(snap.Hideout.Modules)), moduleEdges, len(snap.Hideout.Crafts))
			fmt.Printf("  items    %s\n", green(len(snap.Items)))
			fmt.Printf("  needed   %d task objectives, %d hideout requirements\n",
				len(snap.Tasks.NeededItemTaskObjectives), len(snap.Hideout.NeededItemHideoutModules))
			if n := len(snap.ObjectiveRenames); n > 0 {
				fmt.Printf("  %s %d duplicated objective ids renamed\n", yellow("warn"), n)
			}
			domains := make([]string, 0, len(snap.Errors))
			for d := range snap.Errors {
				domains = append(domains, string(d))
			}
			sort.Strings(domains)
			for _, d := range domains {
				fmt.Printf("  %s %s: %s\n", red("error"), d, snap.Errors[metadata.Domain(d)])
			}

			fmt.Println(bold("most unlocking tasks"))
			for _, t := range ranked {
				fmt.Printf("  %-28s %s %d successors\n", t.ID, cyan(t.Name), len(t.Successors))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "upstream-dir", "", "Directory of upstream payload files")
	cmd.Flags().StringVar(&mode, "mode", "regular", "Game mode")
	cmd.Flags().StringVar(&lang, "lang", "en", "Language")
	cmd.Flags().StringVar(&overlayP, "overlay", "", "Overlay document to apply (file or url)")
	cmd.Flags().StringVar(&taskID, "task", "", "Show one task's neighbourhood")
	cmd.Flags().StringVar(&moduleID, "module", "", "Show one hideout module and its construction time")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log store activity to stderr")
	cmd.Flags().IntVar(&top, "top", 10, "How many tasks to list")
	_ = cmd.MarkFlagRequired("upstream-dir")
	return cmd
}

func printTask(snap *metadata.Snapshot, id string) error {
	task, ok := snap.Task(id)
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	var ancestors, descendants []string
	if g := snap.Tasks.Graph; g != nil {
		ancestors = g.Ancestors(id)
		descendants = g.Descendants(id)
	}
	slices.Sort(ancestors)
	slices.Sort(descendants)
	if flagJSON {
		return outputJSON(map[string]any{"task": task, "ancestors": ancestors, "descendants": descendants})
	}
	fmt.Printf("%s %s (%s)\n", bold(task.Name), dim(task.ID), task.Trader.Name)
	fmt.Printf("  level %d, %d xp, faction %q\n", task.MinPlayerLevel, task.Experience, task.FactionName)
	fmt.Printf("  parents      %v\n", task.Parents)
	fmt.Printf("  children     %v\n", task.Children)
	fmt.Printf("  alternatives %v\n", task.Alternatives)
	fmt.Printf("  ancestors    %d\n", len(ancestors))
	fmt.Printf("  descendants  %d\n", len(descendants))
	return nil
}

func printModule(snap *metadata.Snapshot, id string) error {
	m, ok := snap.Module(id)
	if !ok {
		return fmt.Errorf("module %q not found", id)
	}
	total := snap.Hideout.TotalConstructionTime(id)
	if flagJSON {
		return outputJSON(map[string]any{"module": m, "totalConstructionTime": total})
	}
	fmt.Printf("%s level %d %s\n", bold(m.StationName), m.Level, dim(m.ID))
	fmt.Printf("  construction %ds, %s including prerequisites\n", m.ConstructionTime, green(total))
	fmt.Printf("  parents      %v\n", m.Parents)
	fmt.Printf("  children     %v\n", m.Children)
	fmt.Printf("  items        %d\n", len(m.ItemRequirements))
	return nil
}
