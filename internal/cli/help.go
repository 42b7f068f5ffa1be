package cli

import (
	"fmt"
	"io"
)

func PrintExtendedHelp(out io.Writer) {
	fmt.Fprintln(out, `DoseWise - medication reminders

Usage:
  dosewise [flags] <command> [arguments]

Getting started:
  onboard                  Create your profile and first prescription
  server                   Run the reminder daemon and local API

Prescriptions:
  list                     List prescriptions
  add [flags]              Add a prescription
  edit <id> [flags]        Change a prescription
  show <id> [--raw]        Show a prescription card
  rm <id>                  Remove a prescription
  search <query>           Search the medicine catalog

Doses:
  agenda [--date DAY]      Print the doses for a day (default today)
  take <id> [HH:MM]        Mark a due dose taken
  tui                      Browse the agenda interactively

Maintenance:
  status                   Show profile and today's progress
  rename <name>            Change your profile name
  notify-test              Ask the running server for a test notification
  doctor                   Check configuration, storage and lookups
  config <init|path|show>  Manage the config file
  reset [--yes]            Delete the profile and all prescriptions
  version                  Print the version

Flags:
  --config PATH            Config file (default <data>/dosewise.yaml)
  --data DIR               Data directory

Prescription flags for add and edit:
  --name, --category, --uses, --dosage, --frequency, --count, --first,
  --duration, --with-food, --before, --after, --refill`)
}

func PrintConfigHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: dosewise config <command>")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  init [--force]  Write a config file with the defaults")
	fmt.Fprintln(out, "  path            Print the config file location")
	fmt.Fprintln(out, "  show            Print the config file")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Every key can also be set from the environment, e.g.")
	fmt.Fprintln(out, "DOSEWISE_SERVER_PORT=9000 or DOSEWISE_STORAGE_DRIVER=sqlite")
}
