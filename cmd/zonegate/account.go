package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account management commands",
}

var accountAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountAdd,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	RunE:  runAccountList,
}

var accountApproveCmd = &cobra.Command{
	Use:   "approve <username>",
	Short: "Approve a pending account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountApprove,
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete an account with its realms and tokens",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountDelete,
}

var (
	accountEmail    string
	accountPassword string
)

func init() {
	accountAddCmd.Flags().StringVar(&accountEmail, "email", "", "contact email")
	accountAddCmd.Flags().StringVar(&accountPassword, "password", "", "account password (prompted if empty)")

	accountCmd.AddCommand(accountAddCmd, accountListCmd, accountApproveCmd, accountDeleteCmd)
	rootCmd.AddCommand(accountCmd)
}

func runAccountAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	password := accountPassword
	if password == "" {
		fmt.Print("Password: ")
		if _, err := fmt.Scanln(&password); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	acc, err := st.CreateAccount(args[0], accountEmail, string(hash))
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	fmt.Printf("Account created: %s (%s)\n", acc.Username, acc.ID)
	if !acc.Approved {
		fmt.Println("The account is pending approval; run: zonegate account approve " + acc.Username)
	}
	return nil
}

func runAccountList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	accounts, err := st.ListAccounts()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tEMAIL\tAPPROVED\tACTIVE\tCREATED")
	for _, acc := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%s\n",
			acc.Username, acc.Email, acc.Approved, acc.Active,
			acc.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func runAccountApprove(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	acc, err := st.GetAccountByUsername(args[0])
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("account not found: %s", args[0])
	}

	acc.Approved = true
	if err := st.UpdateAccount(acc); err != nil {
		return err
	}
	fmt.Printf("Account approved: %s\n", acc.Username)
	return nil
}

func runAccountDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	acc, err := st.GetAccountByUsername(args[0])
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("account not found: %s", args[0])
	}

	if err := st.DeleteAccount(acc.ID); err != nil {
		return err
	}
	fmt.Printf("Account deleted: %s\n", acc.Username)
	return nil
}
