package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"

	"storefront/internal/address"
	"storefront/internal/api"
	"storefront/internal/catalog"
	"storefront/internal/payment"
	"storefront/internal/session"
)

var commands = map[string]command{
	"login":       {"log in with email and password", cmdLogin},
	"logout":      {"forget the stored session", cmdLogout},
	"register":    {"create an account", cmdRegister},
	"verify":      {"verify a new account with the emailed code", cmdVerify},
	"whoami":      {"show the current identity", cmdWhoami},
	"profile":     {"update name and phone", cmdProfile},
	"products":    {"list products", cmdProducts},
	"search":      {"search products, one query per line", cmdSearch},
	"product":     {"show one product", cmdProduct},
	"cart":        {"show the cart", cmdCart},
	"cart-add":    {"add a variant to the cart", cmdCartAdd},
	"cart-remove": {"remove a line from the cart", cmdCartRemove},
	"cart-update": {"change the quantity of a line", cmdCartUpdate},
	"cart-clear":  {"empty the cart", cmdCartClear},
	"addresses":   {"list or add delivery addresses", cmdAddresses},
	"checkout":    {"place an order interactively", cmdCheckout},
	"orders":      {"list, show or cancel orders", cmdOrders},
	"wishlist":    {"list, add or remove wishlist items", cmdWishlist},
	"reviews":     {"list or write product reviews", cmdReviews},
}

func newFlags(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func money(minor int64) string {
	return "₹" + payment.FormatAmount(minor)
}

func requireArg(fs *flag.FlagSet, what string) (string, error) {
	if fs.NArg() < 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		return "", api.NewError(api.ErrValidation, what+" is required")
	}
	return fs.Arg(0), nil
}

// ----------------- Session -----------------

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login", a.out)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password, prompted when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		p, err := a.prompt("Password: ")
		if err != nil {
			return err
		}
		*password = p
	}

	user, err := a.session.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	a.printf("Logged in as %s <%s>\n", user.Name, user.Email)
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	a.session.Logout()
	a.printf("Logged out\n")
	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register", a.out)
	var in session.RegisterInput
	fs.StringVar(&in.Name, "name", "", "full name")
	fs.StringVar(&in.Email, "email", "", "email")
	fs.StringVar(&in.Password, "password", "", "password")
	fs.StringVar(&in.Phone, "phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	msg, err := a.session.Register(ctx, in)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Registration received. Check your email for a verification code."
	}
	a.printf("%s\n", msg)
	return nil
}

func cmdVerify(ctx context.Context, a *app, args []string) error {
	fs := newFlags("verify", a.out)
	email := fs.String("email", "", "account email")
	code := fs.String("code", "", "verification code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.session.VerifyRegistration(ctx, *email, *code); err != nil {
		return err
	}
	a.printf("Account verified. You can log in now.\n")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	id := a.session.Identity()
	if !id.Authenticated() {
		a.printf("anonymous\n")
		return nil
	}
	a.printf("%s <%s>\n", id.User.Name, id.User.Email)
	if exp, ok := a.session.TokenExpiry(); ok {
		a.printf("session expires %s\n", exp.Format("2006-01-02 15:04"))
	}
	return nil
}

func cmdProfile(ctx context.Context, a *app, args []string) error {
	id := a.session.Identity()
	if !id.Authenticated() {
		return api.NewError(api.ErrNotAuthenticated, "login required")
	}

	fs := newFlags("profile", a.out)
	in := session.ProfileInput{Name: id.User.Name, Phone: id.User.Phone}
	fs.StringVar(&in.Name, "name", in.Name, "full name")
	fs.StringVar(&in.Phone, "phone", in.Phone, "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.session.UpdateProfile(ctx, in)
	if err != nil {
		return err
	}
	a.printf("Profile updated: %s", user.Name)
	if user.Phone != "" {
		a.printf(" (%s)", user.Phone)
	}
	a.printf("\n")
	return nil
}

// ----------------- Catalog -----------------

func cmdProducts(ctx context.Context, a *app, args []string) error {
	fs := newFlags("products", a.out)
	var q catalog.Query
	var categories, sizes string
	fs.IntVar(&q.Page, "page", 1, "page number")
	fs.IntVar(&q.Limit, "limit", 12, "products per page")
	fs.StringVar(&q.Search, "q", "", "search text")
	fs.StringVar(&q.Brand, "brand", "", "brand")
	fs.StringVar(&q.Sort, "sort", "", "sort order, e.g. price_asc")
	fs.StringVar(&categories, "categories", "", "comma separated categories")
	fs.StringVar(&sizes, "sizes", "", "comma separated sizes")
	fs.Int64Var(&q.MinPrice, "min", 0, "minimum price in minor units")
	fs.Int64Var(&q.MaxPrice, "max", 0, "maximum price in minor units")
	featured := fs.Bool("featured", false, "featured products only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q.Categories = splitList(categories)
	q.Sizes = splitList(sizes)

	if *featured {
		list, err := a.products.Featured(ctx)
		if err != nil {
			return err
		}
		for _, p := range list {
			a.printf("%-26s %-30s %10s\n", p.ID, p.Title, money(p.Price))
		}
		return nil
	}

	page, err := a.products.List(ctx, q)
	if err != nil {
		return err
	}
	for _, p := range page.Products {
		a.printf("%-26s %-30s %10s\n", p.ID, p.Title, money(p.Price))
	}
	a.printf("page %d of %d (%d products)\n",
		page.Pagination.CurrentPage, page.Pagination.TotalPages, page.Pagination.TotalProducts)
	return nil
}

// cmdSearch reads one query per line and searches while the next line is
// typed. Results of a query overtaken by a newer one are dropped.
func cmdSearch(ctx context.Context, a *app, args []string) error {
	fs := newFlags("search", a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	view := catalog.NewGuard()
	defer view.Close()

	var wg sync.WaitGroup
	for {
		line, readErr := a.in.ReadString('\n')
		if text := strings.TrimSpace(line); text != "" {
			ticket := view.Begin("results")
			wg.Add(1)
			go func() {
				defer wg.Done()
				found, err := a.products.Search(ctx, text)
				var hints []string
				if err == nil && len(found) == 0 {
					hints, _ = a.products.Suggestions(ctx, text)
				}
				view.Apply(ticket, func() {
					printSearch(a, text, found, hints, err)
				})
			}()
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			wg.Wait()
			return readErr
		}
	}
	wg.Wait()
	return nil
}

func printSearch(a *app, text string, found []catalog.Product, hints []string, err error) {
	switch {
	case err != nil:
		a.printf("search %q: %s\n", text, api.UserMessage(err))
	case len(found) == 0:
		a.printf("no results for %q\n", text)
		if len(hints) > 0 {
			a.printf("did you mean: %s\n", strings.Join(hints, ", "))
		}
	default:
		a.printf("results for %q:\n", text)
		for _, p := range found {
			a.printf("%-26s %-30s %10s\n", p.ID, p.Title, money(p.Price))
		}
	}
}

func cmdProduct(ctx context.Context, a *app, args []string) error {
	fs := newFlags("product", a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := requireArg(fs, "product id")
	if err != nil {
		return err
	}

	p, err := a.products.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.recent.Add(*p); err != nil {
		a.printf("warning: could not update recently viewed: %v\n", err)
	}

	a.printf("%s (%s)\n%s\n%s\n\n", p.Title, p.Brand, money(p.Price), p.Description)
	a.printf("sizes: %s\n", strings.Join(p.Sizes(), ", "))
	for _, v := range p.Variants {
		stock := fmt.Sprintf("%d in stock", v.Stock)
		if v.Stock <= 0 {
			stock = "out of stock"
		}
		a.printf("  %-26s %-10s size %-5s %10s  %s\n", v.ID, v.Color, v.Size, money(v.Price), stock)
	}
	return nil
}

// ----------------- Cart -----------------

func (a *app) loadCart(ctx context.Context) error {
	if !a.session.Identity().Authenticated() && !a.cfg.AnonymousCart {
		return api.NewError(api.ErrNotAuthenticated, "login required")
	}
	return a.cart.Load(ctx)
}

func (a *app) printCart() {
	lines := a.cart.Lines()
	if len(lines) == 0 {
		a.printf("Your cart is empty\n")
		return
	}
	for _, l := range lines {
		name := l.ProductName
		if name == "" {
			name = l.VariantID
		}
		a.printf("%-30s size %-5s x%-3d %10s\n", name, l.Size, l.Quantity, money(l.Subtotal()))
	}
	a.printf("%d items, total %s\n", a.cart.Count(), money(a.cart.TotalPrice()))
}

func cmdCart(ctx context.Context, a *app, args []string) error {
	if err := a.loadCart(ctx); err != nil {
		return err
	}
	a.printCart()
	return nil
}

func cmdCartAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlags("cart-add", a.out)
	product := fs.String("product", "", "product id, enables the stock check")
	variant := fs.String("variant", "", "variant id")
	size := fs.String("size", "", "size")
	qty := fs.Int("qty", 1, "quantity")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.loadCart(ctx); err != nil {
		return err
	}

	stock := -1
	if *product != "" {
		p, err := a.products.Get(ctx, *product)
		if err != nil {
			return err
		}
		for _, v := range p.Variants {
			if v.ID == *variant && v.Size == *size {
				stock = v.Stock
			}
		}
	}

	if err := a.cart.AddLineWithStock(ctx, *variant, *size, *qty, stock); err != nil {
		return err
	}
	a.printf("Added to cart\n")
	a.printCart()
	return nil
}

func cmdCartRemove(ctx context.Context, a *app, args []string) error {
	fs := newFlags("cart-remove", a.out)
	variant := fs.String("variant", "", "variant id")
	size := fs.String("size", "", "size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.loadCart(ctx); err != nil {
		return err
	}

	if err := a.cart.RemoveLine(ctx, *variant, *size); err != nil {
		return err
	}
	a.printCart()
	return nil
}

func cmdCartUpdate(ctx context.Context, a *app, args []string) error {
	fs := newFlags("cart-update", a.out)
	variant := fs.String("variant", "", "variant id")
	size := fs.String("size", "", "size")
	qty := fs.Int("qty", 1, "new quantity, 0 removes the line")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.loadCart(ctx); err != nil {
		return err
	}

	if err := a.cart.UpdateQuantity(ctx, *variant, *size, *qty); err != nil {
		return err
	}
	a.printCart()
	return nil
}

func cmdCartClear(ctx context.Context, a *app, args []string) error {
	if err := a.loadCart(ctx); err != nil {
		return err
	}
	if err := a.cart.Clear(ctx); err != nil {
		return err
	}
	a.printCart()
	return nil
}

// ----------------- Account -----------------

func printAddress(a *app, addr address.Address) {
	def := ""
	if addr.IsDefault {
		def = " (default)"
	}
	a.printf("%s  %s, %s, %s, %s %s, %s%s\n",
		addr.ID, addr.Name, addr.Street, addr.City, addr.State, addr.Pincode, addr.Phone, def)
}

func cmdAddresses(ctx context.Context, a *app, args []string) error {
	fs := newFlags("addresses", a.out)
	add := fs.Bool("add", false, "add a new address")
	var in address.Input
	fs.StringVar(&in.Name, "name", "", "recipient name")
	fs.StringVar(&in.Phone, "phone", "", "phone")
	fs.StringVar(&in.Street, "street", "", "street")
	fs.StringVar(&in.City, "city", "", "city")
	fs.StringVar(&in.State, "state", "", "state")
	fs.StringVar(&in.Pincode, "pincode", "", "postal code")
	fs.BoolVar(&in.IsDefault, "default", false, "make it the default address")
	setDefault := fs.String("set-default", "", "address id to make default")
	remove := fs.String("delete", "", "address id to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		list []address.Address
		err  error
	)
	switch {
	case *add:
		var created *address.Address
		created, list, err = a.addresses.Create(ctx, in)
		if err == nil {
			a.printf("Added address %s\n", created.ID)
		}
	case *setDefault != "":
		list, err = a.addresses.SetDefault(ctx, *setDefault)
	case *remove != "":
		list, err = a.addresses.Delete(ctx, *remove)
	default:
		list, err = a.addresses.List(ctx)
	}
	if err != nil {
		return err
	}

	if len(list) == 0 {
		a.printf("No saved addresses\n")
	}
	for _, addr := range list {
		printAddress(a, addr)
	}
	return nil
}

func cmdOrders(ctx context.Context, a *app, args []string) error {
	fs := newFlags("orders", a.out)
	show := fs.String("show", "", "order id to show")
	cancel := fs.String("cancel", "", "order id to cancel")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *cancel != "":
		if err := a.orders.Cancel(ctx, *cancel); err != nil {
			return err
		}
		a.printf("Order %s cancelled\n", *cancel)
		return nil

	case *show != "":
		o, err := a.orders.Get(ctx, *show)
		if err != nil {
			return err
		}
		a.printf("Order %s  %s  payment %s (%s)\n", o.Ref(), o.Status, o.PaymentStatus, o.PaymentMethod)
		for _, it := range o.Items {
			a.printf("  %-30s size %-5s x%-3d %10s\n", it.Name, it.Size, it.Quantity, money(it.Price*int64(it.Quantity)))
		}
		a.printf("total %s\n", money(o.TotalAmount))
		if o.DeliveryAddress != nil {
			a.printf("deliver to: ")
			printAddress(a, *o.DeliveryAddress)
		}
		return nil
	}

	list, err := a.orders.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.printf("No orders yet\n")
	}
	for _, o := range list {
		a.printf("%-16s %-10s %-10s %10s  %s\n",
			o.Ref(), o.Status, o.PaymentStatus, money(o.TotalAmount), o.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func cmdWishlist(ctx context.Context, a *app, args []string) error {
	fs := newFlags("wishlist", a.out)
	add := fs.String("add", "", "product id to add")
	remove := fs.String("remove", "", "product id to remove")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *add != "":
		if err := a.wishlist.Add(ctx, *add); err != nil {
			return err
		}
	case *remove != "":
		if err := a.wishlist.Remove(ctx, *remove); err != nil {
			return err
		}
	}

	items, err := a.wishlist.List(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		a.printf("Your wishlist is empty\n")
	}
	for _, it := range items {
		a.printf("%-26s %-30s %10s\n", it.Product.ID, it.Product.Title, money(it.Product.Price))
	}
	return nil
}

func cmdReviews(ctx context.Context, a *app, args []string) error {
	fs := newFlags("reviews", a.out)
	page := fs.Int("page", 1, "page number")
	sort := fs.String("sort", "newest", "sort order")
	write := fs.Bool("write", false, "write a review")
	var in catalog.ReviewInput
	fs.IntVar(&in.Rating, "rating", 0, "rating from 1 to 5")
	fs.StringVar(&in.Title, "title", "", "review title")
	fs.StringVar(&in.Comment, "comment", "", "review text")
	fs.StringVar(&in.Size, "size", "", "size bought")
	fs.StringVar(&in.Fit, "fit", "", "fit, e.g. true_to_size")
	helpful := fs.String("helpful", "", "review id to mark helpful")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *helpful != "" {
		n, err := a.reviews.MarkHelpful(ctx, *helpful)
		if err != nil {
			return err
		}
		a.printf("%d people found this helpful\n", n)
		return nil
	}

	productID, err := requireArg(fs, "product id")
	if err != nil {
		return err
	}

	if *write {
		if err := a.reviews.Create(ctx, productID, in); err != nil {
			return err
		}
		a.printf("Thanks for your review\n")
		return nil
	}

	res, err := a.reviews.List(ctx, productID, *page, *sort)
	if err != nil {
		return err
	}
	a.printf("%.1f average from %d reviews\n", res.Average(), res.TotalReviews)
	for _, r := range res.Reviews {
		a.printf("%s  %d/5  %s: %s (%d helpful)\n", r.ID, r.Rating, r.User.Name, r.Comment, r.Helpful)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
