package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide writes step-by-step instructions for obtaining a bearer token
func ShowTokenGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "🔑 TWITTER API BEARER TOKEN")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Full-archive search needs an app-only bearer token with academic")
	fmt.Fprintln(w, "or pro access.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Sign in at https://developer.twitter.com/en/portal/dashboard")
	fmt.Fprintln(w, "STEP 2: Open your project and select the app used for harvesting")
	fmt.Fprintln(w, "STEP 3: Under 'Keys and tokens', generate or regenerate the Bearer Token")
	fmt.Fprintln(w, "STEP 4: Provide it to tweetharvest in one of these ways:")
	fmt.Fprintln(w, "   • tweetharvest auth set            (stores it in the system keyring)")
	fmt.Fprintln(w, "   • BEARER_TOKEN=... in a .env file in the working directory")
	fmt.Fprintln(w, "   • export TWEETHARVEST_BEARER_TOKEN=...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "⚠️  The token grants access to your API quota. Never commit it.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
