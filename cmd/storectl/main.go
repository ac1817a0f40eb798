// Copyright 2025 AUTHORS
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// storectl is a thin command-line front end over pkg/store: it opens a
// local store database and drives the BuildInfo and Component registries
// and the local mirror pull directly, without any network transport.
package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/AdaCore/e3-core-sub000/pkg/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var dbPath string

func main() {
	root := rootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "storectl",
		Short:         "Inspect and populate a store database",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "store.db", "path to the store's sqlite database")
	cmd.AddCommand(
		buildCmd(),
		componentCmd(),
		mirrorCmd(),
	)
	return cmd
}

func openDB() (*store.DB, error) {
	return store.Open(dbPath)
}

func buildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Manage build campaigns",
	}

	create := &cobra.Command{
		Use:   "create <setup> <build-date> <version>",
		Short: "Create a new build campaign",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			bi, err := db.CreateBuildID(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Println(bi.ID)
			return nil
		},
	}

	ready := &cobra.Command{
		Use:   "ready <build-id>",
		Short: "Mark a build campaign ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			_, err = db.MarkBuildReady(args[0])
			return err
		},
	}

	var listSetup, listDate, listVersion string
	var nbDays int
	list := &cobra.Command{
		Use:   "list",
		Short: "List build campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			infos, err := db.ListBuildInfos(listDate, listSetup, listVersion, nbDays)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSETUP\tDATE\tVERSION\tREADY")
			for _, bi := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", bi.ID, bi.Setup, bi.BuildDate, bi.BuildVersion, bi.IsReady)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&listSetup, "setup", "all", "restrict to this setup")
	list.Flags().StringVar(&listDate, "date", "all", "restrict to this build date (YYYYMMDD)")
	list.Flags().StringVar(&listVersion, "version", "all", "restrict to this build version")
	list.Flags().IntVar(&nbDays, "nb-days", 1, "window size in days, when --date is given")

	cmd.AddCommand(create, ready, list)
	return cmd
}

func componentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "component",
		Short: "Inspect components",
	}

	var setup, date, platform, name, specname, buildID string
	latest := &cobra.Command{
		Use:   "latest",
		Short: "List the latest component per (name, platform)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			comps, err := db.LatestComponents(setup, date, platform, name, specname, buildID)
			if err != nil {
				return err
			}
			return printComponents(comps)
		},
	}
	latest.Flags().StringVar(&setup, "setup", "", "setup to query (required)")
	latest.Flags().StringVar(&date, "date", "all", "build date filter")
	latest.Flags().StringVar(&platform, "platform", "all", "platform filter")
	latest.Flags().StringVar(&name, "name", "all", "component name filter")
	latest.Flags().StringVar(&specname, "specname", "all", "spec name filter")
	latest.Flags().StringVar(&buildID, "build-id", "all", "build id filter")
	latest.MarkFlagRequired("setup")

	cmd.AddCommand(latest)
	return cmd
}

func printComponents(comps []store.Component) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPLATFORM\tVERSION\tVALID\tPUBLISHED")
	for _, c := range comps {
		valid := color.GreenString("yes")
		if !c.IsValid {
			valid = color.RedString("no")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n", c.ID, c.Name, c.Platform, c.Version, valid, c.IsPublished)
	}
	return w.Flush()
}

func mirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Pull build data from an upstream mirror database",
	}

	var upstreamPath, setup, name, platform, date, specname string
	pull := &cobra.Command{
		Use:   "pull-component",
		Short: "Pull the latest matching component(s) from an upstream sqlite database",
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := store.OpenMirror(dbPath, nil)
			if err != nil {
				return err
			}
			defer local.Close()

			upstream, err := store.Open(upstreamPath)
			if err != nil {
				return err
			}
			defer upstream.Close()

			if err := local.AddComponentFromStore(upstream, setup, name, platform, date, specname); err != nil {
				return err
			}
			log.Printf("pulled components for setup=%s name=%s platform=%s", setup, name, platform)
			return nil
		},
	}
	pull.Flags().StringVar(&upstreamPath, "upstream", "", "path to the upstream sqlite database (required)")
	pull.Flags().StringVar(&setup, "setup", "", "setup to pull (required)")
	pull.Flags().StringVar(&name, "name", "all", "component name filter")
	pull.Flags().StringVar(&platform, "platform", "all", "platform filter")
	pull.Flags().StringVar(&date, "date", "all", "build date filter")
	pull.Flags().StringVar(&specname, "specname", "all", "spec name filter")
	pull.MarkFlagRequired("upstream")
	pull.MarkFlagRequired("setup")

	cmd.AddCommand(pull)
	return cmd
}
