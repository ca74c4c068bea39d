package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zonegate/zonegate/internal/model"
)

var domainRootCmd = &cobra.Command{
	Use:   "root",
	Short: "Managed domain root commands",
}

var rootAddCmd = &cobra.Command{
	Use:   "add <domain> <backend>",
	Short: "Register a managed domain root (backend: powerdns or netcup)",
	Args:  cobra.ExactArgs(2),
	RunE:  runRootAdd,
}

var rootListCmd = &cobra.Command{
	Use:   "list",
	Short: "List managed domain roots",
	RunE:  runRootList,
}

var rootDeleteCmd = &cobra.Command{
	Use:   "delete <domain>",
	Short: "Remove a managed domain root",
	Args:  cobra.ExactArgs(1),
	RunE:  runRootDelete,
}

var (
	rootAllowApex   bool
	rootMinDepth    int
	rootMaxDepth    int
	rootRecordTypes string
	rootOperations  string
)

func init() {
	rootAddCmd.Flags().BoolVar(&rootAllowApex, "allow-apex", false, "allow changes to the root domain itself")
	rootAddCmd.Flags().IntVar(&rootMinDepth, "min-depth", 0, "minimum labels below the root (0 = unset)")
	rootAddCmd.Flags().IntVar(&rootMaxDepth, "max-depth", 0, "maximum labels below the root (0 = unset)")
	rootAddCmd.Flags().StringVar(&rootRecordTypes, "record-types", "", "comma-separated allowed record types (empty = all)")
	rootAddCmd.Flags().StringVar(&rootOperations, "operations", "", "comma-separated allowed operations (empty = all)")

	domainRootCmd.AddCommand(rootAddCmd, rootListCmd, rootDeleteCmd)
	rootCmd.AddCommand(domainRootCmd)
}

func runRootAdd(cmd *cobra.Command, args []string) error {
	backend := args[1]
	switch backend {
	case "powerdns", "netcup":
	default:
		return fmt.Errorf("invalid backend %q (powerdns or netcup)", backend)
	}
	if rootMinDepth > 0 && rootMaxDepth > 0 && rootMinDepth > rootMaxDepth {
		return fmt.Errorf("min-depth must not exceed max-depth")
	}

	root := &model.DomainRoot{
		Domain:      args[0],
		Backend:     backend,
		AllowApex:   rootAllowApex,
		MinDepth:    rootMinDepth,
		MaxDepth:    rootMaxDepth,
		RecordTypes: splitList(strings.ToUpper(rootRecordTypes)),
	}
	for _, op := range splitList(rootOperations) {
		switch model.Operation(op) {
		case model.OpRead, model.OpCreate, model.OpUpdate, model.OpDelete:
			root.Operations = append(root.Operations, model.Operation(op))
		default:
			return fmt.Errorf("invalid operation %q", op)
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.PutRoot(root); err != nil {
		return fmt.Errorf("failed to store domain root: %w", err)
	}

	fmt.Printf("Domain root registered: %s (%s)\n", root.Domain, root.Backend)
	return nil
}

func runRootList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	roots, err := st.ListRoots()
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		fmt.Println("No managed domain roots")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tBACKEND\tAPEX\tDEPTH\tRECORD TYPES\tOPERATIONS")
	for _, r := range roots {
		depth := "-"
		if r.MinDepth > 0 || r.MaxDepth > 0 {
			depth = fmt.Sprintf("%d..%d", r.MinDepth, r.MaxDepth)
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\t%s\n",
			r.Domain, r.Backend, r.AllowApex, depth,
			orAll(strings.Join(r.RecordTypes, ",")),
			orAll(joinOps(r.Operations)))
	}
	return w.Flush()
}

func runRootDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteRoot(args[0]); err != nil {
		return err
	}
	fmt.Printf("Domain root deleted: %s\n", args[0])
	return nil
}
