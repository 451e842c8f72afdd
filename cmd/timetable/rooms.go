package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable/internal/csvio"
)

func newRoomsCmd(app *cli) *cobra.Command {
	rooms := &cobra.Command{
		Use:   "rooms",
		Short: "Manage the rooms file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default rooms file if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logr, err := app.load(cmd.Flags(), []flagBinding{{key: "ROOMS_FILE", flag: "rooms"}})
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			created, err := csvio.EnsureRoomsFile(cfg.Inputs.RoomsFile)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s with %d default rooms\n", cfg.Inputs.RoomsFile, len(csvio.DefaultRooms))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, left unchanged\n", cfg.Inputs.RoomsFile)
			return nil
		},
	}
	initCmd.Flags().String("rooms", "rooms.csv", "rooms CSV to create")

	rooms.AddCommand(initCmd)
	return rooms
}
