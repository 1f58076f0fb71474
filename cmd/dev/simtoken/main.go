// simtoken mints a Shopify-shaped session token signed with the app
// secret and drives it through a locally running server, so the whole
// embedded-auth chain (verify, exchange, persist) can be exercised
// without a real admin surface.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	var (
		url      = flag.String("url", "", "endpoint url (defaults to http://localhost<HTTP_ADDR>/v1/api/shop)")
		shop     = flag.String("shop", "example.myshopify.com", "shop domain for the token's dest claim")
		clientID = flag.String("client-id", "", "app client id (SHOPIFY_API_KEY)")
		secret   = flag.String("secret", "", "app client secret used to sign the token (SHOPIFY_API_SECRET)")
		userID   = flag.Int64("user-id", 42, "sub claim (staff user id)")
		ttl      = flag.Duration("ttl", time.Minute, "token lifetime")
		document = flag.Bool("document", false, "send the token as an id_token query param instead of a bearer header")
	)
	flag.Parse()

	if *clientID == "" {
		*clientID = os.Getenv("SHOPIFY_API_KEY")
	}
	if *secret == "" {
		*secret = os.Getenv("SHOPIFY_API_SECRET")
	}
	if *clientID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "missing -client-id/-secret (or SHOPIFY_API_KEY/SHOPIFY_API_SECRET)")
		os.Exit(2)
	}

	if *url == "" {
		httpAddr := os.Getenv("HTTP_ADDR")
		if httpAddr == "" {
			httpAddr = ":8081"
		}
		if len(httpAddr) > 0 && httpAddr[0] == ':' {
			*url = "http://localhost" + httpAddr + "/v1/api/shop"
		} else {
			*url = "http://localhost:8081/v1/api/shop"
		}
	}

	token, err := mint(*shop, *clientID, *secret, *userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodGet, *url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "new request: %v\n", err)
		os.Exit(2)
	}
	if *document {
		q := req.URL.Query()
		q.Set("id_token", token)
		req.URL.RawQuery = q.Encode()
	} else {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			// Show the patch redirect instead of following it.
			return http.ErrUseLastResponse
		},
	}
	resp, err := c.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status=%d\n", resp.StatusCode)
	if loc := resp.Header.Get("Location"); loc != "" {
		fmt.Printf("location=%s\n", loc)
	}
	fmt.Println(string(body))
}

func mint(shop, clientID, secret string, userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  "https://" + shop + "/admin",
		"dest": "https://" + shop,
		"aud":  clientID,
		"sub":  fmt.Sprintf("%d", userID),
		"exp":  now.Add(ttl).Unix(),
		"nbf":  now.Unix(),
		"iat":  now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
