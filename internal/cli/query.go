package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/watzon/saleorhook/internal/subscription"
)

var (
	queryFields []string
	queryName   string
)

var queryCmd = &cobra.Command{
	Use:   "query <event>",
	Short: "Print a subscription query",
	Long: `Build the subscription query for an event and a set of dotted field paths.

Examples:
  saleorhook query product_updated --fields product.id,product.name
  saleorhook query ORDER_CREATED -F order.id -F order.total.gross.amount --name OrderTotals
  saleorhook query --list`,
	Args: func(cmd *cobra.Command, args []string) error {
		if list, _ := cmd.Flags().GetBool("list"); list {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringSliceVarP(&queryFields, "fields", "F", nil, "Dotted field paths to select")
	queryCmd.Flags().StringVar(&queryName, "name", "", "Subscription name (default: the event's payload type)")
	queryCmd.Flags().Bool("list", false, "List supported events")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if list, _ := cmd.Flags().GetBool("list"); list {
		for _, e := range subscription.Events() {
			fmt.Fprintf(out, "%-20s %s\n", e, e.GraphQLType())
		}
		return nil
	}

	event, err := subscription.ParseEventType(args[0])
	if err != nil {
		return err
	}

	var opts []subscription.Option
	if queryName != "" {
		opts = append(opts, subscription.WithName(queryName))
	}

	fields := make([]string, 0, len(queryFields))
	for _, f := range queryFields {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}

	d, err := subscription.Build(event, fields, opts...)
	if err != nil {
		return err
	}

	fmt.Fprint(out, d.Query())
	return nil
}
