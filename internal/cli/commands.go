package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mmeshcher/expense-tracker/internal/model"
	"github.com/mmeshcher/expense-tracker/internal/view"
)

type rootOptions struct {
	server   string
	email    string
	password string
	verbose  bool

	logger *zap.Logger
}

// NewRootCommand собирает дерево команд invoicectl.
// Адрес сервера и учётные данные по умолчанию берутся из INVOICECTL_SERVER, INVOICECTL_EMAIL и INVOICECTL_PASSWORD.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Manage expense tracker invoices from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.verbose {
				logger, err := zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				opts.logger = logger
				return nil
			}
			opts.logger = zap.NewNop()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("INVOICECTL_SERVER", "localhost:8080"), "expense tracker address")
	root.PersistentFlags().StringVar(&opts.email, "email", os.Getenv("INVOICECTL_EMAIL"), "login email")
	root.PersistentFlags().StringVar(&opts.password, "password", os.Getenv("INVOICECTL_PASSWORD"), "login password")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		newCustomersCommand(opts),
		newListCommand(opts),
		newCreateCommand(opts),
		newUpdateCommand(opts),
		newDeleteCommand(opts),
		newReceiptCommand(opts),
	)

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// session создаёт клиент и выполняет вход.
func (o *rootOptions) session(ctx context.Context) (*Client, error) {
	if o.email == "" || o.password == "" {
		return nil, errors.New("--email and --password are required")
	}

	c, err := NewClient(o.server, o.logger)
	if err != nil {
		return nil, err
	}
	if err := c.Login(ctx, o.email, o.password); err != nil {
		return nil, err
	}
	return c, nil
}

func newCustomersCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "customers",
		Short: "List customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.session(cmd.Context())
			if err != nil {
				return err
			}

			customers, err := c.ListCustomers(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
			for _, cu := range customers {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", cu.ID, cu.Name, cu.Email)
			}
			return tw.Flush()
		},
	}
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List invoices, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.session(cmd.Context())
			if err != nil {
				return err
			}

			invoices, err := c.ListInvoices(cmd.Context())
			if err != nil {
				return err
			}

			return printInvoices(cmd.OutOrStdout(), invoices)
		},
	}
}

func printInvoices(w io.Writer, invoices []model.InvoiceView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tAMOUNT\tSTATUS\tDATE\tRECEIPT")
	for _, inv := range invoices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.ID, inv.CustomerName, view.FormatAmount(inv.AmountCents), inv.Status, inv.Date, inv.ReceiptKey)
	}
	return tw.Flush()
}

type invoiceFlags struct {
	customer string
	amount   string
	status   string
	receipt  string
}

func (f *invoiceFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.customer, "customer", "", "customer id")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount in dollars, e.g. 45.00")
	cmd.Flags().StringVar(&f.status, "status", "", "pending or paid")
	cmd.Flags().StringVar(&f.receipt, "receipt", "", "path to a PNG or JPEG receipt to attach")
}

// form собирает форму счёта, загружая чек, если указан файл. Ошибка загрузки прерывает команду.
func (f *invoiceFlags) form(ctx context.Context, c *Client, receiptID string) (model.InvoiceForm, error) {
	if f.receipt != "" {
		key, err := c.UploadReceipt(ctx, f.receipt)
		if err != nil {
			return model.InvoiceForm{}, fmt.Errorf("upload receipt: %w", err)
		}
		receiptID = key
	}

	return model.InvoiceForm{
		CustomerID: f.customer,
		Amount:     f.amount,
		Status:     f.status,
		ReceiptID:  receiptID,
	}, nil
}

func newCreateCommand(opts *rootOptions) *cobra.Command {
	flags := &invoiceFlags{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an invoice dated today",
		Example: `  invoicectl create --customer 3958dc9e-712f-4377-85e9-fec4b6a6442a --amount 45.00 --status pending
  invoicectl create --customer 3958dc9e-712f-4377-85e9-fec4b6a6442a --amount 12.5 --status paid --receipt lunch.jpg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.session(cmd.Context())
			if err != nil {
				return err
			}

			form, err := flags.form(cmd.Context(), c, "")
			if err != nil {
				return err
			}
			if err := c.CreateInvoice(cmd.Context(), form); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Created Invoice.")
			return nil
		},
	}
	flags.bind(cmd)

	return cmd
}

func newUpdateCommand(opts *rootOptions) *cobra.Command {
	flags := &invoiceFlags{}
	var removeReceipt bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the fields of an invoice",
		Long: `Replace customer, amount and status of an invoice.

The attached receipt is kept unless --receipt uploads a new one or
--remove-receipt is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if removeReceipt && flags.receipt != "" {
				return errors.New("--receipt and --remove-receipt are mutually exclusive")
			}

			c, err := opts.session(cmd.Context())
			if err != nil {
				return err
			}

			id := args[0]
			current := ""
			if !removeReceipt {
				current, err = currentReceipt(cmd.Context(), c, id)
				if err != nil {
					return err
				}
			}

			form, err := flags.form(cmd.Context(), c, current)
			if err != nil {
				return err
			}
			if err := c.UpdateInvoice(cmd.Context(), id, form); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Updated Invoice.")
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&removeReceipt, "remove-receipt", false, "detach the current receipt")

	return cmd
}

func currentReceipt(ctx context.Context, c *Client, id string) (string, error) {
	invoices, err := c.ListInvoices(ctx)
	if err != nil {
		return "", err
	}
	for _, inv := range invoices {
		if inv.ID == id {
			return inv.ReceiptKey, nil
		}
	}
	return "", nil
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an invoice",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.session(cmd.Context())
			if err != nil {
				return err
			}

			msg, err := c.DeleteInvoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newReceiptCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <id>",
		Short: "Print the public URL of an invoice receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.session(cmd.Context())
			if err != nil {
				return err
			}

			link, err := c.ReceiptURL(cmd.Context(), args[0])
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("invoice %s has no receipt", args[0])
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
}
