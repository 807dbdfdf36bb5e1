package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LArSoft/larbatch/pkg/dimension"
	"github.com/LArSoft/larbatch/pkg/project"
)

var (
	prjName       string
	maxFiles      int
	forceSnapshot bool
	filelistDef   bool
	activeDefname string
	dropboxWait   float64
)

func init() {
	startProjectCmd.Flags().StringVar(&prjName, "project", "", "project name (default derived from definition)")
	startProjectCmd.Flags().IntVar(&maxFiles, "max-files", 0, "limit the input dataset to this many files")
	startProjectCmd.Flags().BoolVar(&forceSnapshot, "force-snapshot", false, "force a new snapshot of the input definition")
	startProjectCmd.Flags().BoolVar(&filelistDef, "filelistdef", false, "freeze the input into a file list definition")

	activeCmd.Flags().StringVar(&activeDefname, "defname", "", "restrict to projects derived from this definition")
	activeCmd.Flags().Float64Var(&dropboxWait, "dropbox-wait", 0, "dropbox waiting interval in days")

	rootCmd.AddCommand(rpnCmd)
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(startProjectCmd)
	rootCmd.AddCommand(activeCmd)
}

var rpnCmd = &cobra.Command{
	Use:   "rpn <dimension>",
	Short: "Print the reverse polish tokenization of a dimension",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		rpn, err := dimension.TokenizeRPN(strings.Join(args, " "))
		if err != nil {
			return err
		}
		for _, tok := range rpn {
			fmt.Println(tok)
		}
		return nil
	},
}

var expandCmd = &cobra.Command{
	Use:   "expand <dimension>",
	Short: "Expand compound defname: clauses in a dimension",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		sam, err := newClient()
		if err != nil {
			return err
		}
		ev := dimension.NewEvaluator(sam)
		dim := strings.Join(args, " ")
		for {
			newdim, err := ev.ExpandDefnames(cmd.Context(), dim)
			if err != nil {
				return err
			}
			if newdim == dim {
				break
			}
			dim = newdim
		}
		fmt.Println(dim)
		return nil
	},
}

var filesCmd = &cobra.Command{
	Use:   "files <dimension>",
	Short: "Evaluate a dimension into a completed file set",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		sam, err := newClient()
		if err != nil {
			return err
		}
		ev := dimension.NewEvaluator(sam)
		files, err := ev.ListFiles(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		for _, f := range files.Sorted() {
			fmt.Println(f)
		}
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count <dimension>",
	Short: "Count files matching a dimension",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		sam, err := newClient()
		if err != nil {
			return err
		}
		n, err := sam.CountFiles(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var startProjectCmd = &cobra.Command{
	Use:   "start-project <defname>",
	Short: "Start a SAM consumer project on a dataset definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		sam, err := newClient()
		if err != nil {
			return err
		}
		mgr := project.New(sam)
		return mgr.StartProject(cmd.Context(), args[0], prjName,
			maxFiles, forceSnapshot, filelistDef)
	},
}

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "List active projects on the experiment's station",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		sam, err := newClient()
		if err != nil {
			return err
		}
		mgr := project.New(sam)
		prjs1, err := mgr.ActiveProjects(cmd.Context(), activeDefname)
		if err != nil {
			return err
		}
		prjs2, err := mgr.ActiveProjectsSince(cmd.Context(), activeDefname, dropboxWait)
		if err != nil {
			return err
		}
		for _, prj := range prjs1.Union(prjs2).Sorted() {
			fmt.Println(prj)
		}
		return nil
	},
}
