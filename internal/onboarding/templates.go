package onboarding

// SetupWizardWelcome is the welcome message for the setup wizard
const SetupWizardWelcome = `
╔════════════════════════════════════════════════════════════════╗
║                                                                ║
║                    💊 Welcome to DoseWise                      ║
║                                                                ║
║            Medication Reminders - Setup Wizard                 ║
║                                                                ║
╚════════════════════════════════════════════════════════════════╝

This wizard creates your profile and your first prescription.
It takes about a minute. You can add more medicines later with
'dosewise add'.

Press Enter to continue...
`

// SetupCompleteMessage is shown when setup completes
const SetupCompleteMessage = `
╔════════════════════════════════════════════════════════════════╗
║                                                                ║
║                  ✅ Setup Complete!                            ║
║                                                                ║
╚════════════════════════════════════════════════════════════════╝

Welcome, {{.Name}}. {{.Medicine}} is scheduled at:
  {{.Times}}

Configuration file:
  {{.ConfigPath}}

## Next Steps:
  dosewise agenda       Show today's doses
  dosewise add          Add another prescription
  dosewise tui          Browse your agenda day by day
  dosewise server       Run the reminder daemon and API

`

// frequencyChoices is the menu order of the frequency prompt
var frequencyChoices = []struct {
	label string
	value string
}{
	{"Every 4 hours (4 doses a day)", "every4hrs"},
	{"Every 8 hours (3 doses a day)", "every8hrs"},
	{"Twice daily (every 12 hours)", "twiceDaily"},
	{"Custom number of doses a day", "custom"},
}
