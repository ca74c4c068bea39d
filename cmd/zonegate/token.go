package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zonegate/zonegate/internal/model"
	"github.com/zonegate/zonegate/internal/token"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Auth token management commands",
}

var tokenAddCmd = &cobra.Command{
	Use:   "add <realm-id> <alias>",
	Short: "Issue a new token for a realm",
	Args:  cobra.ExactArgs(2),
	RunE:  runTokenAdd,
}

var tokenListCmd = &cobra.Command{
	Use:   "list [realm-id]",
	Short: "List tokens, optionally for one realm",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTokenList,
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <token-id>",
	Short: "Revoke a token without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenRevoke,
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete <token-id>",
	Short: "Permanently delete a token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenDelete,
}

var tokenExpires string

func init() {
	tokenAddCmd.Flags().StringVar(&tokenExpires, "expires", "", "expiry as duration (e.g. 720h) or RFC 3339 timestamp")

	tokenCmd.AddCommand(tokenAddCmd, tokenListCmd, tokenRevokeCmd, tokenDeleteCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	realm, err := st.GetRealm(args[0])
	if err != nil {
		return err
	}
	if realm == nil {
		return fmt.Errorf("realm not found: %s", args[0])
	}

	var expiresAt *time.Time
	if tokenExpires != "" {
		if d, err := time.ParseDuration(tokenExpires); err == nil {
			t := time.Now().UTC().Add(d)
			expiresAt = &t
		} else if t, err := time.Parse(time.RFC3339, tokenExpires); err == nil {
			t = t.UTC()
			expiresAt = &t
		} else {
			return fmt.Errorf("invalid expiry %q", tokenExpires)
		}
	}

	raw, prefix, secretHash, err := token.Generate(args[1])
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	tok := &model.AuthToken{
		RealmID:    realm.ID,
		Alias:      args[1],
		Prefix:     prefix,
		SecretHash: secretHash,
		ExpiresAt:  expiresAt,
	}
	if err := st.CreateToken(tok); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	fmt.Printf("Token created: %s\n", tok.ID)
	fmt.Printf("  Realm: %s %s\n", realm.Type, realm.Value)
	if expiresAt != nil {
		fmt.Printf("  Expires: %s\n", expiresAt.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Println("The token is shown only once, store it now:")
	fmt.Println()
	fmt.Printf("  %s\n", raw)
	return nil
}

func runTokenList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	realmID := ""
	if len(args) == 1 {
		realmID = args[0]
	}

	tokens, err := st.ListTokens(realmID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		fmt.Println("No tokens")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tALIAS\tPREFIX\tACTIVE\tEXPIRES\tLAST USED")
	for _, t := range tokens {
		expires := "-"
		if t.ExpiresAt != nil {
			expires = t.ExpiresAt.Format("2006-01-02")
		}
		lastUsed := "-"
		if t.LastUsedAt != nil {
			lastUsed = t.LastUsedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\n",
			t.ID, t.Alias, t.Prefix, t.Active, expires, lastUsed)
	}
	return w.Flush()
}

func runTokenRevoke(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.RevokeToken(args[0]); err != nil {
		return err
	}
	fmt.Printf("Token revoked: %s\n", args[0])
	return nil
}

func runTokenDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteToken(args[0]); err != nil {
		return err
	}
	fmt.Printf("Token deleted: %s\n", args[0])
	return nil
}
