package cli

import (
	"github.com/spf13/cobra"
)

func newDeleteCommand(svc Services, opts *options) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete stored chunks",
		Long:  "Deletes every chunk of the titled document, or of all the owner's documents when --title is empty.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ing, err := svc.Ingester(cmd.Context())
			if err != nil {
				return err
			}
			n, err := ing.DeleteDocument(cmd.Context(), opts.owner, title)
			if err != nil {
				return err
			}
			cmd.Printf("Deleted %d chunks\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "document title (file name)")
	return cmd
}
