package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-genstudio/internal/history"
)

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := requireConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cmd.Context(), cfg.Paths.HistoryPath())
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and manage recorded generations",
	}

	var kind string
	var limit int
	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded generations, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer h.Close()

			items, err := h.List(cmd.Context(), kind, limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), items, asJSON)
		},
	}
	list.Flags().StringVar(&kind, "kind", "", "Only show this kind")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum items (0 = all)")
	list.Flags().BoolVar(&asJSON, "json", false, "Print items as JSON")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Print one item as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			h, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer h.Close()

			item, err := h.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(item)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			h, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer h.Close()
			return h.Delete(cmd.Context(), id)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer h.Close()

			n, err := h.Clear(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d items\n", n)
			return err
		},
	})

	return cmd
}

const previewWidth = 60

func printHistory(w io.Writer, items []history.Item, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(items)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTIME\tKIND\tPREVIEW")
	for _, it := range items {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			it.ID, it.Timestamp.Local().Format(time.DateTime), it.Kind, previewText(it.Preview))
	}
	return tw.Flush()
}

func previewText(p history.Preview) string {
	if p.Type == history.PreviewImage {
		return fmt.Sprintf("[image, %d bytes base64]", len(p.Data))
	}
	r := []rune(strings.Join(strings.Fields(p.Data), " "))
	if len(r) > previewWidth {
		return string(r[:previewWidth-3]) + "..."
	}
	return string(r)
}

