package souper_test

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/souper/pkg/souper"
)

func Example() {
	ctx := context.Background()
	b := souper.NewStatic(map[string]string{
		"https://homes.test/": `<html><body>
			<nav><button><span>For rent</span></button></nav>
			<form action="/search"><input type="text" name="location"></form>
		</body></html>`,
		"https://homes.test/search": `<html><body>
			<nav><a href="/rent"><span>For rent</span></a></nav>
		</body></html>`,
		"https://homes.test/rent": `<html><head><title>Rentals</title></head><body></body></html>`,
	})
	defer b.Close(ctx)

	if err := b.Goto(ctx, "https://homes.test/"); err != nil {
		fmt.Println(err)
		return
	}
	box, err := b.FindElementByCSSSelector(ctx, "input[type=text]")
	if err != nil {
		fmt.Println(err)
		return
	}
	_ = box.SendKeys(ctx, "Seattle, WA")
	_ = box.Submit(ctx)

	// A bot check would show up here; a caller pauses for a human to solve it.
	captcha, _ := b.FindElementsByID(ctx, "px-captcha")
	fmt.Println("captcha present:", len(captcha) > 0)

	rent, err := b.FindElementByText(ctx, "For rent")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("clicking", rent.TagName())
	_ = rent.Click(ctx)

	tree, _ := b.Snapshot(ctx)
	fmt.Println(tree.Title())
	// Output:
	// captcha present: false
	// clicking span
	// Rentals
}
