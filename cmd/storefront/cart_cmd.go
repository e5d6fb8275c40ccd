package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/spf13/cobra"
)

func cartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change the cart",
	}
	cmd.AddCommand(cartAddCmd(), cartRemoveCmd(), cartUpdateCmd(), cartShowCmd(), cartClearCmd())
	return cmd
}

func cartAddCmd() *cobra.Command {
	var qty int
	var size, color string
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product; an existing line for it is replaced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			product, err := a.client.GetProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			snap, err := a.cart.AddItem(cmd.Context(), product, cart.ClampQuantity(qty, product.CountInStock), size, color)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s at %s\n", product.Name, pricing.EffectivePrice(product).StringFixed(2))
			printCart(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().IntVarP(&qty, "qty", "q", 1, "Quantity")
	cmd.Flags().StringVar(&size, "size", "", "Size, when the product has sizes")
	cmd.Flags().StringVar(&color, "color", "", "Color, when the product has colors")
	return cmd
}

func cartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := appFrom(cmd).cart.RemoveItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func cartUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <product-id> <qty>",
		Short: "Change the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			snap, err := appFrom(cmd).cart.UpdateQuantity(cmd.Context(), args[0], qty)
			if err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func cartShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			printCart(cmd.OutOrStdout(), appFrom(cmd).cart.Snapshot())
			return nil
		},
	}
}

func cartClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every line; the saved address is kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := appFrom(cmd).cart.Clear(cmd.Context())
			if err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func printCart(out io.Writer, snap cart.Snapshot) {
	if snap.IsEmpty() {
		fmt.Fprintln(out, "Your cart is empty")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tNAME\tVARIANT\tQTY\tPRICE\tSUBTOTAL")
	for _, li := range snap.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			li.ProductID, li.Name, variant(li), li.Quantity,
			li.UnitPrice.StringFixed(2), pricing.LineTotal(li).StringFixed(2))
	}
	fmt.Fprintf(w, "\t\t\t%d\t\t%s\n", snap.ItemCount, snap.Total.StringFixed(2))
	_ = w.Flush()
}

func variant(li domain.CartLineItem) string {
	switch {
	case li.Size != "" && li.Color != "":
		return li.Size + "/" + li.Color
	case li.Size != "":
		return li.Size
	case li.Color != "":
		return li.Color
	default:
		return "-"
	}
}

func addressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Manage the saved shipping address",
	}

	var addr domain.ShippingAddressDraft
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the saved shipping address",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := appFrom(cmd).cart.SaveShippingAddress(cmd.Context(), addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved address for %s, %s %s\n",
				snap.Address.Name, snap.Address.City, snap.Address.PostalCode)
			return nil
		},
	}
	f := set.Flags()
	f.StringVar(&addr.Name, "name", "", "Full name")
	f.StringVar(&addr.Email, "email", "", "Email")
	f.StringVar(&addr.Phone, "phone", "", "10-digit phone number")
	f.StringVar(&addr.HouseNumber, "house", "", "House/Flat number")
	f.StringVar(&addr.FlatOrSociety, "society", "", "Society/Building name")
	f.StringVar(&addr.Street, "street", "", "Street/Area")
	f.StringVar(&addr.City, "city", "", "City")
	f.StringVar(&addr.State, "state", "", "State")
	f.StringVar(&addr.PostalCode, "postal-code", "", "6-digit postal code")
	f.StringVar(&addr.Landmark, "landmark", "", "Landmark")

	cmd.AddCommand(set)
	return cmd
}
