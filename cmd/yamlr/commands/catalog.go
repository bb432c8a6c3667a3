package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yamlr/yamlr/internal/catalog"
	"github.com/yamlr/yamlr/internal/deprecation"
)

var catalogJSON bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the resource kinds yamlr validates against",
	Run:   runCatalog,
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "Emit the catalog as JSON")
}

type catalogRow struct {
	APIVersion      string `json:"apiVersion"`
	Kind            string `json:"kind"`
	DeprecatedSince string `json:"deprecatedSince,omitempty"`
	RemovedSince    string `json:"removedSince,omitempty"`
	Replacement     string `json:"replacement,omitempty"`
}

func runCatalog(cmd *cobra.Command, args []string) {
	var rows []catalogRow
	for _, e := range catalog.All() {
		row := catalogRow{
			APIVersion:      e.APIVersion,
			Kind:            e.Kind,
			DeprecatedSince: e.DeprecatedSince,
			RemovedSince:    e.RemovedSince,
			Replacement:     e.Replacement,
		}
		if d, ok := deprecation.Lookup(e.APIVersion, e.Kind); ok {
			if row.DeprecatedSince == "" {
				row.DeprecatedSince = d.DeprecatedIn
			}
			if row.RemovedSince == "" {
				row.RemovedSince = d.RemovedIn
			}
			if row.Replacement == "" {
				row.Replacement = d.Replacement
			}
		}
		rows = append(rows, row)
	}

	if catalogJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		HandleError(enc.Encode(rows), "encoding catalog")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "APIVERSION\tKIND\tDEPRECATED\tREMOVED\tREPLACEMENT")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			row.APIVersion, row.Kind,
			orDash(row.DeprecatedSince), orDash(row.RemovedSince), orDash(row.Replacement))
	}
	HandleError(w.Flush(), "writing catalog")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
