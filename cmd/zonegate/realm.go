package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zonegate/zonegate/internal/model"
)

var realmCmd = &cobra.Command{
	Use:   "realm",
	Short: "Realm management commands",
}

var realmAddCmd = &cobra.Command{
	Use:   "add <username> <type> <value>",
	Short: "Grant an account a realm (type: host, subdomain or wildcard)",
	Args:  cobra.ExactArgs(3),
	RunE:  runRealmAdd,
}

var realmListCmd = &cobra.Command{
	Use:   "list [username]",
	Short: "List realms, optionally for one account",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRealmList,
}

var realmDeleteCmd = &cobra.Command{
	Use:   "delete <realm-id>",
	Short: "Delete a realm and revoke its tokens",
	Args:  cobra.ExactArgs(1),
	RunE:  runRealmDelete,
}

var (
	realmRecordTypes string
	realmOperations  string
	realmAllowedIPs  string
)

func init() {
	realmAddCmd.Flags().StringVar(&realmRecordTypes, "record-types", "", "comma-separated allowed record types (empty = all)")
	realmAddCmd.Flags().StringVar(&realmOperations, "operations", "", "comma-separated allowed operations (empty = all)")
	realmAddCmd.Flags().StringVar(&realmAllowedIPs, "allowed-ips", "", "comma-separated source IPs/CIDRs (empty = any)")

	realmCmd.AddCommand(realmAddCmd, realmListCmd, realmDeleteCmd)
	rootCmd.AddCommand(realmCmd)
}

func runRealmAdd(cmd *cobra.Command, args []string) error {
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

	realm := &model.Realm{
		AccountID:       acc.ID,
		Type:            model.RealmType(args[1]),
		Value:           args[2],
		RecordTypes:     splitList(strings.ToUpper(realmRecordTypes)),
		AllowedIPRanges: splitList(realmAllowedIPs),
	}
	for _, op := range splitList(realmOperations) {
		switch model.Operation(op) {
		case model.OpRead, model.OpCreate, model.OpUpdate, model.OpDelete:
			realm.Operations = append(realm.Operations, model.Operation(op))
		default:
			return fmt.Errorf("invalid operation %q", op)
		}
	}

	if err := st.CreateRealm(realm); err != nil {
		return fmt.Errorf("failed to create realm: %w", err)
	}

	fmt.Printf("Realm created: %s\n", realm.ID)
	fmt.Printf("  Scope: %s %s\n", realm.Type, realm.Value)
	return nil
}

func runRealmList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	accountID := ""
	if len(args) == 1 {
		acc, err := st.GetAccountByUsername(args[0])
		if err != nil {
			return err
		}
		if acc == nil {
			return fmt.Errorf("account not found: %s", args[0])
		}
		accountID = acc.ID
	}

	realms, err := st.ListRealms(accountID)
	if err != nil {
		return err
	}
	if len(realms) == 0 {
		fmt.Println("No realms")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tVALUE\tRECORD TYPES\tOPERATIONS\tALLOWED IPS")
	for _, r := range realms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Type, r.Value,
			orAll(strings.Join(r.RecordTypes, ",")),
			orAll(joinOps(r.Operations)),
			orAny(strings.Join(r.AllowedIPRanges, ",")))
	}
	return w.Flush()
}

func runRealmDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteRealm(args[0]); err != nil {
		return err
	}
	fmt.Printf("Realm deleted: %s\n", args[0])
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinOps(ops []model.Operation) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = string(op)
	}
	return strings.Join(parts, ",")
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}
