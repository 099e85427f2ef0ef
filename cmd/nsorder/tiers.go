package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/command"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/tier"
	"github.com/spf13/cobra"
)

type tierRow struct {
	tier   int
	action string
	object string
}

func newTiersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "Print the tier table used to order commands",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := tierRows(tier.Default())

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIER\tNAME\tACTION\tOBJECT")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.tier, tier.Name(r.tier), r.action, r.object)
			}
			return tw.Flush()
		},
	}
}

// tierRows lists the table's rules plus the two fallback tiers, in emission
// order.
func tierRows(table *tier.Table) []tierRow {
	var rows []tierRow
	for _, rule := range table.Rules() {
		object := "*"
		if !rule.AnyObject {
			object = rule.Object.String()
		}
		rows = append(rows, tierRow{tier: rule.Tier, action: rule.Action.String(), object: object})
	}
	rows = append(rows,
		tierRow{tier: tier.DefaultAdd, action: command.ActionCreate.String(), object: "(unlisted)"},
		tierRow{tier: tier.CatchAll, action: "*", object: "*"},
	)

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].tier < rows[j].tier })
	return rows
}
