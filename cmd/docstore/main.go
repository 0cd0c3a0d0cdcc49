package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"docstore-go/internal/app"
	"docstore-go/internal/config"
	"docstore-go/internal/docs"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a DocApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "SaveVersion", "Archive").
func newApp(operation string) (*app.DocApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewDocApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// Caller flags
var (
	flagIdentity     string
	flagForwardedFor string
	flagRemoteAddr   string
	flagServerURL    string
)

// callerFromFlags builds the request context from the global flags.
// An explicit --identity bypasses address resolution but is still sanitized.
func callerFromFlags() docs.Caller {
	caller := docs.NewCaller(flagForwardedFor, flagRemoteAddr, flagServerURL)
	if flagIdentity != "" {
		caller.Identity = docs.SanitizeIdentity(flagIdentity)
	}
	return caller
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var rootCmd = &cobra.Command{
	Use:          "docstore",
	Short:        "Per-user document storage with version history",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults.BaseDir)

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Instance ID:  %s\n", instanceID)
		fmt.Printf("Base Dir:     %s\n", defaults.BaseDir)
		fmt.Printf("Storage Root: %s\n", cfg.Storage.Root)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Instance ID:    %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Storage Root:   %s\n", cfg.Storage.Root)
		fmt.Printf("Storage Folder: %s\n", cfg.Storage.Folder)
		if cfg.Server.ExampleURL != "" {
			fmt.Printf("Example URL:    %s\n", cfg.Server.ExampleURL)
		}
		fmt.Printf("Edited Docs:    %v\n", cfg.Server.EditedDocs)
		fmt.Printf("Encryption:     %s\n", cfg.Encryption.Type)
		fmt.Printf("Database:       %s\n", cfg.Database.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:          %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the archive encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		passphrase, err := promptNewPassphrase(os.Stderr)
		if err != nil {
			return err
		}
		if err := app.SetupKeys(cfg, passphrase); err != nil {
			return err
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// new command
var newCmd = &cobra.Command{
	Use:   "new FILE",
	Short: "Store a new document (FILE may be - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		userID, _ := cmd.Flags().GetString("user-id")
		userName, _ := cmd.Flags().GetString("user-name")
		if name == "" {
			if args[0] == "-" {
				return fmt.Errorf("--name is required when reading from stdin")
			}
			name = filepath.Base(args[0])
		}

		in, err := openInput(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		a, err := newApp("CreateDocument")
		if err != nil {
			return err
		}
		defer a.Close()

		caller := callerFromFlags()
		stored, err := a.CreateDocument(caller.Identity, name, in, userID, userName)
		if err != nil {
			return fmt.Errorf("creating document: %w", err)
		}
		fmt.Printf("Stored %s\n", stored)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp("StoredFiles")
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.StoredFiles(callerFromFlags().Identity)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, files)
		}
		if len(files) == 0 {
			fmt.Println("No documents.")
			return nil
		}
		for _, f := range files {
			mode := "view"
			if f.CanEdit {
				mode = "edit"
			}
			docType := string(f.DocumentType)
			if docType == "" {
				docType = "-"
			}
			fmt.Printf("%s  v%-3d  %-12s  %s  %s\n",
				f.Time.Format("2006-01-02 15:04:05"), f.Version, docType, mode, f.Name)
		}
		return nil
	},
}

// key command
var keyCmd = &cobra.Command{
	Use:   "key NAME",
	Short: "Show the revision key and URLs of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Key")
		if err != nil {
			return err
		}
		defer a.Close()

		caller := callerFromFlags()
		key, err := a.Key(caller, args[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, struct {
			Key string `json:"key"`
			app.DocumentLinks
		}{Key: key, DocumentLinks: a.Links(caller, args[0])})
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history NAME",
	Short: "Show the version history of a document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		h, err := a.History(callerFromFlags(), args[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, h)
	},
}

// save command
var saveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Commit the current document as a version and replace it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentPath, _ := cmd.Flags().GetString("content")
		diffPath, _ := cmd.Flags().GetString("diff")
		changesPath, _ := cmd.Flags().GetString("changes")
		key, _ := cmd.Flags().GetString("key")
		userID, _ := cmd.Flags().GetString("user-id")

		content, err := openInput(contentPath)
		if err != nil {
			return err
		}
		defer content.Close()

		req := docs.SaveRequest{Content: content, Key: key, UserID: userID}
		if diffPath != "" {
			diff, err := openInput(diffPath)
			if err != nil {
				return err
			}
			defer diff.Close()
			req.Diff = diff
		}
		if changesPath != "" {
			changes, err := os.ReadFile(changesPath)
			if err != nil {
				return fmt.Errorf("reading changes: %w", err)
			}
			req.Changes = changes
		}

		a, err := newApp("SaveVersion")
		if err != nil {
			return err
		}
		defer a.Close()

		caller := callerFromFlags()
		if req.Key == "" {
			// Record the key the replaced content had.
			if req.Key, err = a.Key(caller, args[0]); err != nil {
				return err
			}
		}
		version, err := a.SaveVersion(caller.Identity, args[0], req)
		if err != nil {
			return fmt.Errorf("saving version: %w", err)
		}
		fmt.Printf("Saved version %d of %s\n", version, args[0])
		return nil
	},
}

// forcesave command
var forcesaveCmd = &cobra.Command{
	Use:   "forcesave NAME",
	Short: "Store an intermediate checkpoint of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentPath, _ := cmd.Flags().GetString("content")
		content, err := openInput(contentPath)
		if err != nil {
			return err
		}
		defer content.Close()

		a, err := newApp("SaveForcesave")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SaveForcesave(callerFromFlags().Identity, args[0], content); err != nil {
			return fmt.Errorf("saving checkpoint: %w", err)
		}
		fmt.Printf("Saved checkpoint of %s\n", args[0])
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a document and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		historyOnly, _ := cmd.Flags().GetBool("history-only")

		a, err := newApp("DeleteDocument")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteDocument(callerFromFlags().Identity, args[0], historyOnly); err != nil {
			return err
		}
		if historyOnly {
			fmt.Printf("Deleted history of %s\n", args[0])
		} else {
			fmt.Printf("Deleted %s\n", args[0])
		}
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive NAME",
	Short: "Copy a document and its history into the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Archive")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Archive(callerFromFlags().Identity, args[0])
		if err != nil {
			return fmt.Errorf("archive failed: %w", err)
		}
		fmt.Printf("Archived %d file(s)\n", n)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore NAME",
	Short: "Restore a document and its history from the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		identity := callerFromFlags().Identity
		needs, err := a.NeedsDecryption(identity, args[0])
		if err != nil {
			return err
		}
		var passphrase string
		if needs {
			if passphrase, err = promptPassphrase(os.Stderr, "Passphrase: "); err != nil {
				return err
			}
		}

		paths, err := a.Restore(identity, args[0], passphrase)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		fmt.Printf("Restored %d file(s)\n", len(paths))
		return nil
	},
}

// journal command
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "View the operation journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("Journal")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.Journal(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagIdentity, "identity", "", "Namespace to operate on (overrides address resolution)")
	rootCmd.PersistentFlags().StringVar(&flagForwardedFor, "forwarded-for", "", "Forwarded-for header of the request")
	rootCmd.PersistentFlags().StringVar(&flagRemoteAddr, "remote-addr", "127.0.0.1", "Remote address of the request")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server-url", "http://localhost:8000", "Base URL the caller reached the server on")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	newCmd.Flags().String("name", "", "Document name (default: base name of FILE)")
	newCmd.Flags().String("user-id", "uid-1", "ID of the creating user")
	newCmd.Flags().String("user-name", "John Smith", "Name of the creating user")

	listCmd.Flags().Bool("json", false, "Print JSON")

	saveCmd.Flags().String("content", "", "New document content (- for stdin)")
	saveCmd.Flags().String("diff", "", "Editor diff archive")
	saveCmd.Flags().String("changes", "", "Changes record (JSON)")
	saveCmd.Flags().String("key", "", "Key of the replaced content (default: current key)")
	saveCmd.Flags().String("user-id", "", "ID of the committing user")
	saveCmd.MarkFlagRequired("content")

	forcesaveCmd.Flags().String("content", "", "Checkpoint content (- for stdin)")
	forcesaveCmd.MarkFlagRequired("content")

	deleteCmd.Flags().Bool("history-only", false, "Keep the document, delete its history")

	journalCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(forcesaveCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(journalCmd)
}
