package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mbhd-go/internal/app"
	"mbhd-go/internal/config"
	"mbhd-go/internal/mbhd"
)

// dateLayout is the format of dates given on the command line.
const dateLayout = "2006-01-02"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an MBHDApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "CreateWallet", "BackupLocal").
func newApp(operation string) (*app.MBHDApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewMBHDApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// parseDate parses an optional date flag. An empty value is no date.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.UTC().Format(dateLayout)
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func printBackups(title string, backups []*mbhd.BackupSummary) {
	fmt.Printf("%s:\n", title)
	if len(backups) == 0 {
		fmt.Println("  none")
		return
	}
	for _, b := range backups {
		fmt.Printf("  %s  %8d  %s\n", b.Created.UTC().Format("2006-01-02 15:04:05"), b.Size, b.Location)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mbhd",
	Short: "Wallet backup and key recovery tool",
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

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Wallets:  %s\n", cfg.AppDataDir)
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

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		cloud := cfg.Cloud.Type
		if cloud == "" {
			cloud = "none"
		}
		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Wallets:    %s\n", cfg.AppDataDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Encryption: %s %s\n", cfg.Encryption.Type, cfg.Encryption.Format)
		fmt.Printf("Retention:  rolling=%d zip=%d keep_first=%d keep_last=%d\n",
			cfg.Retention.RollingMax, cfg.Retention.ZipMax, cfg.Retention.ZipKeepFirst, cfg.Retention.ZipKeepLast)
		fmt.Printf("Cloud:      %s\n", cloud)
		fmt.Printf("Keys:       %s\n", cfg.Keys.Derivation)
		return nil
	},
}

// wallet command
var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage wallets",
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a wallet from a recovery phrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		notes, _ := cmd.Flags().GetString("notes")
		generate, _ := cmd.Flags().GetBool("generate")

		a, err := newApp("CreateWallet")
		if err != nil {
			return err
		}
		defer a.Close()

		var words []string
		if generate {
			if words, err = a.NewRecoveryPhrase(); err != nil {
				return err
			}
			fmt.Println("Write down your recovery phrase:")
			fmt.Printf("\n  %s\n\n", strings.Join(words, " "))
		} else if words, err = readPhrase(); err != nil {
			return err
		}

		password, err := readNewPassword("Wallet password: ")
		if err != nil {
			return err
		}
		defer clear(password)

		s, err := a.CreateWallet(words, password, name, notes)
		if err != nil {
			return fmt.Errorf("creating wallet: %w", err)
		}
		fmt.Printf("Created wallet %s\n", s.WalletID)
		return nil
	},
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wallets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListWallets")
		if err != nil {
			return err
		}
		defer a.Close()

		wallets, err := a.ListWallets()
		if err != nil {
			return err
		}
		if len(wallets) == 0 {
			fmt.Println("No wallets found.")
			return nil
		}
		for _, w := range wallets {
			fmt.Printf("%s  %s  %s\n", w.WalletID, w.CreatedAt.UTC().Format("2006-01-02"), w.Name)
		}
		return nil
	},
}

var walletRecoverPasswordCmd = &cobra.Command{
	Use:   "recover-password",
	Short: "Recover a wallet password from its recovery phrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RecoverPassword")
		if err != nil {
			return err
		}
		defer a.Close()

		words, err := readPhrase()
		if err != nil {
			return err
		}
		id, password, err := a.RecoverPassword(words)
		if err != nil {
			return fmt.Errorf("recovering password: %w", err)
		}
		defer clear(password)

		fmt.Printf("Wallet:   %s\n", id)
		fmt.Printf("Password: %s\n", password)
		return nil
	},
}

var walletSaveCmd = &cobra.Command{
	Use:   "save WALLET_ID",
	Short: "Save a wallet, taking rolling and zip backups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SaveWallet")
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readPassword("Wallet password: ")
		if err != nil {
			return err
		}
		defer clear(password)

		if err := a.SaveWallet(args[0], password); err != nil {
			return fmt.Errorf("saving wallet: %w", err)
		}
		fmt.Println("Wallet saved.")
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list and thin backups",
}

// backupRunE builds the RunE of the commands that write one backup.
func backupRunE(operation string, run func(*app.MBHDApp, string, []byte) (*mbhd.BackupSummary, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(operation)
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readPassword("Wallet password: ")
		if err != nil {
			return err
		}
		defer clear(password)

		b, err := run(a, args[0], password)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		if b == nil {
			fmt.Println("No cloud target available, nothing written.")
			return nil
		}
		fmt.Printf("Backup written to %s\n", b.Location)
		return nil
	}
}

var backupRollingCmd = &cobra.Command{
	Use:   "rolling WALLET_ID",
	Short: "Take a rolling backup of the wallet file",
	Args:  cobra.ExactArgs(1),
	RunE:  backupRunE("BackupRolling", (*app.MBHDApp).BackupRolling),
}

var backupLocalCmd = &cobra.Command{
	Use:   "local WALLET_ID",
	Short: "Write a zip backup to the wallet's zip-backup directory",
	Args:  cobra.ExactArgs(1),
	RunE:  backupRunE("BackupLocal", (*app.MBHDApp).BackupLocal),
}

var backupCloudCmd = &cobra.Command{
	Use:   "cloud WALLET_ID",
	Short: "Write a zip backup to the cloud target",
	Args:  cobra.ExactArgs(1),
	RunE:  backupRunE("BackupCloud", (*app.MBHDApp).BackupCloud),
}

var backupListCmd = &cobra.Command{
	Use:   "list WALLET_ID",
	Short: "List the backups of a wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListBackups")
		if err != nil {
			return err
		}
		defer a.Close()

		l, err := a.ListBackups(args[0])
		if err != nil {
			return err
		}
		printBackups("Rolling", l.Rolling)
		printBackups("Local zip", l.Local)
		printBackups("Cloud zip", l.Cloud)
		return nil
	},
}

var backupThinCmd = &cobra.Command{
	Use:   "thin WALLET_ID",
	Short: "Apply zip retention to local and cloud backups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Thin")
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.Thin(args[0])
		for _, b := range deleted {
			fmt.Printf("Deleted %s\n", b.Location)
		}
		if err != nil {
			return fmt.Errorf("thinning: %w", err)
		}
		fmt.Printf("Deleted %d backup(s)\n", len(deleted))
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a wallet from a backup",
}

var restoreRollingCmd = &cobra.Command{
	Use:   "rolling WALLET_ID",
	Short: "Load the newest usable rolling backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apply, _ := cmd.Flags().GetBool("apply")

		a, err := newApp("RestoreRolling")
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readPassword("Wallet password: ")
		if err != nil {
			return err
		}
		defer clear(password)

		state, err := a.RestoreRolling(args[0], password, apply)
		if err != nil {
			return fmt.Errorf("restoring: %w", err)
		}
		if apply {
			fmt.Printf("Wallet %s restored from rolling backup.\n", state.WalletID)
			return nil
		}
		fmt.Printf("Rolling backup of %s is readable (%d bytes). Use --apply to restore it.\n", state.WalletID, len(state.Data))
		return nil
	},
}

var restoreZipCmd = &cobra.Command{
	Use:   "zip ARCHIVE",
	Short: "Restore a wallet directory from a zip backup using the recovery phrase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RestoreZip")
		if err != nil {
			return err
		}
		defer a.Close()

		words, err := readPhrase()
		if err != nil {
			return err
		}
		id, err := a.RestoreZip(args[0], words)
		if err != nil {
			return fmt.Errorf("restoring: %w", err)
		}
		fmt.Printf("Wallet %s restored from %s\n", id, args[0])
		return nil
	},
}

// brit command
var britCmd = &cobra.Command{
	Use:   "brit",
	Short: "Exchange wallet recovery information with a matcher",
}

var britKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create the matcher key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BritKeygen")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readNewPassword("Matcher key passphrase: ")
		if err != nil {
			return err
		}
		defer clear(passphrase)

		publicKey, err := a.BritKeygen(string(passphrase))
		if err != nil {
			return err
		}
		fmt.Printf("Matcher public key: %s\n", publicKey)
		return nil
	},
}

var britRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Create an encrypted payer request",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		firstTxFlag, _ := cmd.Flags().GetString("first-transaction")
		firstTx, err := parseDate(firstTxFlag)
		if err != nil {
			return err
		}

		a, err := newApp("BritRequest")
		if err != nil {
			return err
		}
		defer a.Close()

		words, err := readPhrase()
		if err != nil {
			return err
		}
		req, encrypted, err := a.BritRequest(words, firstTx)
		if err != nil {
			return err
		}
		if err := writeOutput(out, encrypted); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wallet id:   %s\n", req.BritWalletID)
		fmt.Fprintf(os.Stderr, "Session key: %s\n", hex.EncodeToString(req.SessionKey))
		return nil
	},
}

var britDecryptRequestCmd = &cobra.Command{
	Use:   "decrypt-request FILE",
	Short: "Decrypt a payer request with the matcher key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BritDecryptRequest")
		if err != nil {
			return err
		}
		defer a.Close()

		encrypted, err := readInput(args[0])
		if err != nil {
			return err
		}
		passphrase, err := readPassword("Matcher key passphrase: ")
		if err != nil {
			return err
		}
		defer clear(passphrase)

		req, err := a.BritDecryptRequest(encrypted, string(passphrase))
		if err != nil {
			return err
		}
		fmt.Printf("Wallet id:         %s\n", req.BritWalletID)
		fmt.Printf("Session key:       %s\n", hex.EncodeToString(req.SessionKey))
		fmt.Printf("First transaction: %s\n", formatDate(req.FirstTransactionDate))
		return nil
	},
}

var britRespondCmd = &cobra.Command{
	Use:   "respond FILE",
	Short: "Answer a payer request as the matcher",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		addresses, _ := cmd.Flags().GetStringSlice("address")
		replayFlag, _ := cmd.Flags().GetString("replay-date")
		replay, err := parseDate(replayFlag)
		if err != nil {
			return err
		}

		a, err := newApp("BritRespond")
		if err != nil {
			return err
		}
		defer a.Close()

		encrypted, err := readInput(args[0])
		if err != nil {
			return err
		}
		passphrase, err := readPassword("Matcher key passphrase: ")
		if err != nil {
			return err
		}
		defer clear(passphrase)

		resp, err := a.BritRespond(encrypted, string(passphrase), replay, addresses)
		if err != nil {
			return err
		}
		return writeOutput(out, []byte(hex.EncodeToString(resp)+"\n"))
	},
}

var britDecryptResponseCmd = &cobra.Command{
	Use:   "decrypt-response FILE",
	Short: "Decrypt a matcher response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		walletID, _ := cmd.Flags().GetString("wallet-id")
		sessionKeyHex, _ := cmd.Flags().GetString("session-key")

		sessionKey, err := hex.DecodeString(sessionKeyHex)
		if err != nil {
			return fmt.Errorf("parsing session key: %w", err)
		}
		raw, err := readInput(args[0])
		if err != nil {
			return err
		}
		encrypted, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}

		a, err := newApp("BritDecryptResponse")
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.BritDecryptResponse(encrypted, walletID, sessionKey)
		if err != nil {
			return err
		}
		fmt.Printf("Replay date: %s\n", formatDate(resp.ReplayDate))
		for _, addr := range resp.BitcoinAddresses {
			fmt.Printf("Address:     %s\n", addr)
		}
		return nil
	},
}

// key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Inspect keys derived from a recovery phrase",
}

var keyDeriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive public keys and addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetUint32("start")
		count, _ := cmd.Flags().GetUint32("count")

		a, err := newApp("DeriveKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		words, err := readPhrase()
		if err != nil {
			return err
		}
		keys, err := a.DeriveKeys(words, start, count)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Printf("%4d  %s  %s\n", k.Index, k.Address, k.PublicKey)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View backup history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		walletID, _ := cmd.Flags().GetString("wallet")
		operations, _ := cmd.Flags().GetBool("operations")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		if operations {
			ops, err := a.Operations(limit)
			if err != nil {
				return err
			}
			if len(ops) == 0 {
				fmt.Println("No operations recorded.")
				return nil
			}
			for _, op := range ops {
				duration := ""
				if op.FinishedAt != nil {
					duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
				}
				fmt.Printf("#%d  %-18s  %s  %-8s  %s\n",
					op.ID,
					op.Operation,
					op.StartedAt.Format("2006-01-02 15:04:05"),
					op.Status,
					duration,
				)
			}
			return nil
		}

		events, err := a.History(walletID, limit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No backup events recorded.")
			return nil
		}
		for _, e := range events {
			fmt.Printf("%s  %-8s  %-7s  %s  %s\n",
				e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
				e.Event,
				e.Kind,
				e.WalletID,
				e.Location,
			)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// wallet subcommands
	walletCmd.AddCommand(walletCreateCmd)
	walletCreateCmd.Flags().String("name", "", "Wallet name")
	walletCreateCmd.Flags().String("notes", "", "Wallet notes")
	walletCreateCmd.Flags().Bool("generate", false, "Generate a new recovery phrase")
	walletCmd.AddCommand(walletListCmd)
	walletCmd.AddCommand(walletRecoverPasswordCmd)
	walletCmd.AddCommand(walletSaveCmd)

	// backup subcommands
	backupCmd.AddCommand(backupRollingCmd)
	backupCmd.AddCommand(backupLocalCmd)
	backupCmd.AddCommand(backupCloudCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupThinCmd)

	// restore subcommands
	restoreCmd.AddCommand(restoreRollingCmd)
	restoreRollingCmd.Flags().Bool("apply", false, "Replace the wallet file with the recovered state")
	restoreCmd.AddCommand(restoreZipCmd)

	// brit subcommands
	britCmd.AddCommand(britKeygenCmd)
	britCmd.AddCommand(britRequestCmd)
	britRequestCmd.Flags().String("first-transaction", "", "Date of the wallet's first transaction (YYYY-MM-DD)")
	britRequestCmd.Flags().StringP("out", "o", "", "Write the request to this file instead of stdout")
	britCmd.AddCommand(britDecryptRequestCmd)
	britCmd.AddCommand(britRespondCmd)
	britRespondCmd.Flags().String("replay-date", "", "Date to replay the wallet from (YYYY-MM-DD)")
	britRespondCmd.Flags().StringSlice("address", nil, "Address to return to the payer (repeatable)")
	britRespondCmd.Flags().StringP("out", "o", "", "Write the response to this file instead of stdout")
	britCmd.AddCommand(britDecryptResponseCmd)
	britDecryptResponseCmd.Flags().String("wallet-id", "", "Wallet id printed by brit request")
	britDecryptResponseCmd.Flags().String("session-key", "", "Session key printed by brit request")
	britDecryptResponseCmd.MarkFlagRequired("wallet-id")
	britDecryptResponseCmd.MarkFlagRequired("session-key")

	// key subcommands
	keyCmd.AddCommand(keyDeriveCmd)
	keyDeriveCmd.Flags().Uint32("start", 0, "First key index")
	keyDeriveCmd.Flags().Uint32("count", 5, "Number of keys")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(britCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
	historyCmd.Flags().String("wallet", "", "Only show events of this wallet id")
	historyCmd.Flags().Bool("operations", false, "Show CLI operations instead of backup events")
}
