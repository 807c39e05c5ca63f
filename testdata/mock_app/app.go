// app.go is a minimal web app to put behind the guarding proxy.
// Usage: go run app.go -listen :4000
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
)

func main() {
	listen := flag.String("listen", ":4000", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /pages/login/index", func(w http.ResponseWriter, r *http.Request) {
		redirect := r.URL.Query().Get("redirect")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<form method="post" action="/login?redirect=%s">
<button>Log in</button>
</form>`, redirect)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "token", Value: "mock-token", Path: "/", HttpOnly: true})
		to := r.URL.Query().Get("redirect")
		if to == "" {
			to = "/pages/index/index"
		}
		http.Redirect(w, r, to, http.StatusFound)
	})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "page %s\n", r.URL.Path)
	})

	log.Printf("mock app listening on %s", *listen)
	log.Fatal(http.ListenAndServe(*listen, mux))
}
