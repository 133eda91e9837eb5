package main

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"storefront/internal/address"
	"storefront/internal/api"
	"storefront/internal/checkout"
	"storefront/internal/payment"
)

// cmdCheckout walks the checkout flow with answers read from stdin.
func cmdCheckout(ctx context.Context, a *app, args []string) error {
	fs := newFlags("checkout", a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.loadCart(ctx); err != nil {
		return err
	}
	a.printCart()

	err := a.flow.Begin(ctx)
	for err != nil && a.flow.State() == checkout.StateAddressSelection {
		a.printf("Could not load your addresses.\n")
		if err = offerRetry(ctx, a, err); err != nil {
			return err
		}
		err = a.flow.ReloadAddresses(ctx)
	}
	if err != nil {
		return err
	}
	if err := chooseAddress(ctx, a); err != nil {
		return err
	}
	if err := choosePaymentAndSubmit(ctx, a); err != nil {
		return err
	}

	switch a.flow.State() {
	case checkout.StateAwaitingOtp:
		if err := enterOtp(ctx, a); err != nil {
			return err
		}
	case checkout.StateAwaitingExternalConfirmation:
		if err := confirmWallet(ctx, a); err != nil {
			return err
		}
	}

	snap := a.flow.Snapshot()
	if snap.State != checkout.StateCompleted || snap.Order == nil {
		return api.NewError(api.ErrUnknown, "checkout did not complete")
	}
	a.printf("Order %s placed, total %s\n", snap.Order.Ref(), money(snap.Order.TotalAmount))
	return nil
}

func chooseAddress(ctx context.Context, a *app) error {
	for {
		snap := a.flow.Snapshot()
		if len(snap.Addresses) == 0 {
			a.printf("No saved addresses, add one to continue.\n")
			if err := addAddress(ctx, a); err != nil {
				if err := offerRetry(ctx, a, err); err != nil {
					return err
				}
			}
			continue
		}

		for i, addr := range snap.Addresses {
			mark := " "
			if snap.Selected != nil && snap.Selected.ID == addr.ID {
				mark = "*"
			}
			a.printf("%s %d) ", mark, i+1)
			printAddress(a, addr)
		}

		answer, err := a.prompt("Deliver to [number, n for new, enter to keep *]: ")
		if err != nil {
			return err
		}

		switch {
		case answer == "":
		case strings.EqualFold(answer, "n"):
			if err := addAddress(ctx, a); err != nil {
				if rerr := a.redirected(ctx); rerr != nil {
					return rerr
				}
				a.printf("%s\n", api.UserMessage(err))
			}
			continue
		default:
			n, err := strconv.Atoi(answer)
			if err != nil || n < 1 || n > len(snap.Addresses) {
				a.printf("Please pick a number from the list.\n")
				continue
			}
			if err := a.flow.SelectAddress(snap.Addresses[n-1].ID); err != nil {
				return err
			}
		}

		err = a.flow.ConfirmAddress(ctx)
		if errors.Is(err, checkout.ErrAddressRequired) {
			a.printf("%s\n", api.UserMessage(err))
			continue
		}
		return err
	}
}

// offerRetry shows a recoverable address failure and asks whether to try
// again. It returns nil to retry, or the error that ends the checkout.
func offerRetry(ctx context.Context, a *app, err error) error {
	if errors.Is(err, io.EOF) {
		return err
	}
	if rerr := a.redirected(ctx); rerr != nil {
		return rerr
	}
	a.printf("%s\n", api.UserMessage(err))

	answer, perr := a.prompt("Try again? [Y/n]: ")
	if perr != nil {
		return perr
	}
	if strings.EqualFold(answer, "n") {
		return err
	}
	return nil
}

func addAddress(ctx context.Context, a *app) error {
	var in address.Input
	fields := []struct {
		label string
		dst   *string
	}{
		{"Name: ", &in.Name},
		{"Phone: ", &in.Phone},
		{"Street: ", &in.Street},
		{"City: ", &in.City},
		{"State: ", &in.State},
		{"Pincode: ", &in.Pincode},
	}
	for _, f := range fields {
		v, err := a.prompt(f.label)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return a.flow.AddAddress(ctx, in)
}

func choosePaymentAndSubmit(ctx context.Context, a *app) error {
	for {
		answer, err := a.prompt("Payment method [cod, card, upi]: ")
		if err != nil {
			return err
		}
		method, err := payment.ParseMethod(answer)
		if err != nil {
			a.printf("%s\n", api.UserMessage(err))
			continue
		}

		var card *payment.CardDetails
		if method == payment.MethodCard {
			if card, err = readCard(a); err != nil {
				return err
			}
		}

		if err := a.flow.SelectPayment(method, card); err != nil {
			return err
		}

		err = a.flow.Submit(ctx)
		if err == nil {
			return nil
		}
		if rerr := a.redirected(ctx); rerr != nil {
			return rerr
		}
		// validation and rejected orders leave the flow at payment selection
		if a.flow.State() != checkout.StatePaymentSelection || api.KindOf(err) == api.ErrNotAuthenticated {
			return err
		}
		a.printf("%s\n", api.UserMessage(err))
	}
}

func readCard(a *app) (*payment.CardDetails, error) {
	var c payment.CardDetails
	fields := []struct {
		label string
		dst   *string
	}{
		{"Name on card: ", &c.Holder},
		{"Card number: ", &c.Number},
		{"Expiry (MM/YY): ", &c.Expiry},
		{"CVV: ", &c.CVV},
	}
	for _, f := range fields {
		v, err := a.prompt(f.label)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	a.printf("Paying with card %s\n", payment.MaskCard(c.Number))
	return &c, nil
}

func enterOtp(ctx context.Context, a *app) error {
	a.printf("A verification code was sent for this payment.\n")
	for {
		code, err := a.prompt("Code: ")
		if err != nil {
			return err
		}

		err = a.flow.VerifyOtp(ctx, code)
		if err == nil {
			return nil
		}
		if rerr := a.redirected(ctx); rerr != nil {
			return rerr
		}
		if a.flow.State() == checkout.StateFailed {
			return err
		}
		a.printf("%s\n", api.UserMessage(err))
	}
}

func confirmWallet(ctx context.Context, a *app) error {
	snap := a.flow.Snapshot()
	if p := snap.Pending; p != nil {
		if p.Target != nil {
			a.printf("Pay %s to %s\n%s\n", money(p.Amount), p.Target.Payee, p.Target.URI)
		}
		for _, line := range payment.Instructions(payment.MethodWallet, p.Amount, p.OrderID, a.cfg.WalletPayee) {
			a.printf("  - %s\n", line)
		}
	}

	for {
		answer, err := a.prompt("Press enter once paid, or q to stop: ")
		if err != nil {
			return err
		}
		if strings.EqualFold(answer, "q") {
			a.flow.Cancel(ctx)
			return api.NewError(api.ErrValidation, "payment not completed, your cart is unchanged")
		}

		err = a.flow.ConfirmExternalPayment(ctx)
		if err == nil {
			return nil
		}
		if rerr := a.redirected(ctx); rerr != nil {
			return rerr
		}
		if a.flow.State() == checkout.StateFailed {
			return err
		}
		a.printf("%s\n", api.UserMessage(err))
	}
}
