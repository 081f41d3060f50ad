package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jacquetc/qleany"
	"github.com/jacquetc/qleany/config"
	"github.com/jacquetc/qleany/logging"
	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/generate"
	"github.com/jacquetc/qleany/pkg/longop"
)

var (
	version    = "0.1.0"
	configFile string
	rootCmd    = &cobra.Command{
		Use:   "qleany",
		Short: "Model-driven code generator",
		Long: `qleany turns a manifest of entities, features and use cases into a
generated source tree for a target stack.`,
		Version: version,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "qleany.yaml", "configuration file")
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().String("output", "", "output directory (overrides configuration)")
	generateCmd.Flags().Bool("only-existing", false, "only regenerate files already on disk")
}

// openApp builds the application from the configuration file.
func openApp() (*qleany.App, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	app, err := qleany.New(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return app, log, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Reset the workspace to a blank manifest",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app, _, err := openApp()
		if err != nil {
			fatal(err)
		}
		defer app.Close()

		if err := app.NewManifest(); err != nil {
			fatal(err)
		}
		fmt.Println("Workspace reset")
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <manifest>",
	Short: "Import a manifest file into the workspace store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, _, err := openApp()
		if err != nil {
			fatal(err)
		}
		defer app.Close()

		if err := app.LoadManifest(args[0]); err != nil {
			fatal(err)
		}
		fmt.Printf("Loaded %s\n", args[0])
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <manifest>",
	Short: "Export the workspace store into a manifest file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, _, err := openApp()
		if err != nil {
			fatal(err)
		}
		defer app.Close()

		if err := app.SaveManifest(args[0]); err != nil {
			fatal(err)
		}
		fmt.Printf("Saved %s\n", args[0])
	},
}

var listCmd = &cobra.Command{
	Use:   "list <target>",
	Short: "List the files a generation run would produce",
	Long:  "Targets: rust, cpp-qt.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, _, err := openApp()
		if err != nil {
			fatal(err)
		}
		defer app.Close()

		descriptors, err := app.Pipeline.List(domain.TargetLanguage(args[0]))
		if err != nil {
			fatal(err)
		}
		out, err := json.MarshalIndent(descriptors, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(out))
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <target>",
	Short: "Generate the source tree for a target",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, log, err := openApp()
		if err != nil {
			fatal(err)
		}
		defer app.Close()

		opts := app.GenerateOptions()
		if flag, _ := cmd.Flags().GetString("output"); flag != "" {
			opts.OutputRoot = flag
		}
		if flag, _ := cmd.Flags().GetBool("only-existing"); flag {
			opts.OnlyExisting = true
		}

		id, err := app.Pipeline.Generate(domain.TargetLanguage(args[0]), opts)
		if err != nil {
			fatal(err)
		}
		if err := app.Operations.Wait(id); err != nil {
			fatal(err)
		}
		status, err := app.Operations.Status(id)
		if err != nil {
			fatal(err)
		}
		if status != longop.StatusCompleted {
			msg, _ := app.Operations.FailureMessage(id)
			fatal(fmt.Errorf("generation %s: %s", status, msg))
		}

		raw, _ := app.Operations.Result(id)
		var report generate.Report
		if err := json.Unmarshal(raw, &report); err != nil {
			fatal(err)
		}
		for _, path := range report.Written {
			fmt.Printf("wrote %s\n", path)
		}
		for path, msg := range report.Failed {
			log.Warn("generation failed", zap.String("path", path), zap.String("reason", msg))
		}
		if len(report.Failed) > 0 {
			os.Exit(1)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
