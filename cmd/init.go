package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/nimogit/beacon/internal/config"
	"github.com/nimogit/beacon/internal/security"
)

var (
	initFlags struct {
		serverURL string
		appKey    string
		advanced  bool
	}
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Configure the beacon client",
	Long: `Configure the beacon client interactively.

The wizard asks for the collector URL and the application key, and writes
the result to the configuration file. With --advanced it also covers the
checksum salt, location metadata and retry tuning. The application key can
be kept in the OS keyring instead of the file.`,
	Run: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initFlags.serverURL, "server", "", "Collector URL (skips the prompt)")
	initCmd.Flags().StringVar(&initFlags.appKey, "app-key", "", "Application key (skips the prompt)")
	initCmd.Flags().BoolVarP(&initFlags.advanced, "advanced", "a", false, "Prompt for salt, location and retry settings")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if initFlags.serverURL != "" {
		cfg.ServerURL = initFlags.serverURL
	} else {
		prompt := &survey.Input{
			Message: "Collector URL:",
			Default: cfg.ServerURL,
			Help:    "Base URL of the collector, e.g. https://stats.example.com",
		}
		if err := survey.AskOne(prompt, &cfg.ServerURL, survey.WithValidator(survey.Required)); err != nil {
			fmt.Println("Initialization cancelled.")
			return
		}
	}

	appKey := initFlags.appKey
	if appKey == "" {
		prompt := &survey.Input{Message: "Application key:"}
		if err := survey.AskOne(prompt, &appKey, survey.WithValidator(survey.Required)); err != nil {
			fmt.Println("Initialization cancelled.")
			return
		}
	}

	useKeyring := cfg.UseKeyring
	keyringPrompt := &survey.Confirm{
		Message: "Store the application key in the OS keyring?",
		Default: true,
	}
	if err := survey.AskOne(keyringPrompt, &useKeyring); err != nil {
		fmt.Println("Initialization cancelled.")
		return
	}

	if useKeyring {
		creds, err := security.NewCredentialStore()
		if err != nil {
			fmt.Printf("Error opening credential store: %v\n", err)
			os.Exit(1)
		}
		if err := creds.StoreAppKey(appKey); err != nil {
			fmt.Printf("Error storing app key: %v\n", err)
			os.Exit(1)
		}
		cfg.AppKey = ""
	} else {
		cfg.AppKey = appKey
	}
	cfg.UseKeyring = useKeyring

	if initFlags.advanced {
		if err := askAdvanced(cfg); err != nil {
			fmt.Println("Initialization cancelled.")
			return
		}
	}

	if err := config.Save(cfg); err != nil {
		fmt.Printf("Error saving configuration: %v\n", err)
		os.Exit(1)
	}

	file, _ := config.File()
	fmt.Println()
	fmt.Printf("✅ Configuration saved to %s\n", file)
	fmt.Println("Try it: beacon track event app_started")
}

func askAdvanced(cfg *config.Config) error {
	questions := []*survey.Question{
		{
			Name:   "salt",
			Prompt: &survey.Input{Message: "Checksum salt (empty to disable):", Default: cfg.Salt},
		},
		{
			Name:   "appVersion",
			Prompt: &survey.Input{Message: "Application version:", Default: cfg.AppVersion},
		},
		{
			Name:   "countryCode",
			Prompt: &survey.Input{Message: "Country code (ISO, optional):", Default: cfg.CountryCode},
		},
		{
			Name:   "city",
			Prompt: &survey.Input{Message: "City (optional):", Default: cfg.City},
		},
	}

	answers := struct {
		Salt        string
		AppVersion  string
		CountryCode string
		City        string
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	cfg.Salt = answers.Salt
	cfg.AppVersion = answers.AppVersion
	cfg.CountryCode = answers.CountryCode
	cfg.City = answers.City
	return nil
}
