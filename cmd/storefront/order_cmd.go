package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/spf13/cobra"
)

func checkoutCmd() *cobra.Command {
	var payment, proofFile string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart using the saved address",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			method, err := parsePaymentMethod(payment)
			if err != nil {
				return err
			}

			req := checkout.Request{
				Address:       a.cart.Snapshot().Address,
				PaymentMethod: method,
			}
			if method == domain.PaymentQRCode && proofFile != "" && a.session.Session().IsAuthenticated() {
				f, err := os.Open(proofFile)
				if err != nil {
					return fmt.Errorf("open payment proof: %w", err)
				}
				ref, err := a.checkout.UploadPaymentProof(cmd.Context(), filepath.Base(proofFile), f)
				f.Close()
				if err != nil {
					return err
				}
				req.PaymentProofRef = ref
			}

			res, err := a.checkout.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s placed, total %s\n",
				res.Order.ID, res.Submission.GrandTotal.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&payment, "payment", "cod", "Payment method: cod or qr")
	cmd.Flags().StringVar(&proofFile, "proof", "", "Payment screenshot to upload when paying by QR code")
	return cmd
}

func parsePaymentMethod(s string) (domain.PaymentMethod, error) {
	switch strings.ToLower(s) {
	case "cod", "cash":
		return domain.PaymentCashOnDelivery, nil
	case "qr", "qrcode":
		return domain.PaymentQRCode, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", s)
	}
}

func ordersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			orders, err := appFrom(cmd).checkout.MyOrders(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(orders) == 0 {
				fmt.Fprintln(out, "No orders yet")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tDATE\tPAYMENT\tTOTAL\tPAID\tDELIVERED")
			for _, o := range orders {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					o.ID, o.CreatedAt.Format("2006-01-02"), o.PaymentMethod,
					o.TotalPrice.StringFixed(2), yesNo(o.IsPaid), yesNo(o.IsDelivered))
			}
			return w.Flush()
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
