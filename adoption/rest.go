package adoption

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const timeout = 15

// Router returns the RESTful API of the service.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.limit)
	r.HandleFunc("/", a.homeHandler).Methods("GET")             // page with the pets and their adopt buttons
	r.HandleFunc("/pets", a.petsHandler).Methods("GET")         // page model
	r.HandleFunc("/adopt/{id}", a.adoptHandler).Methods("POST") // adopt a pet
	r.HandleFunc("/networks", a.networksHandler).Methods("GET") // available network profiles

	return r
}

// Serve sets up and starts the http/https server to service the RESTful API. If sslPort, sslCert and sslKey are
// informed, it will start an https (TLS) server on the specified endpoint. It returns when the servers are shut down
// by Stop.
func (a *App) Serve(endpoint, port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	r := a.Router()

	// start http server
	if port != "" {
		a.s = &http.Server{
			Handler:      r,
			Addr:         endpoint + ":" + port,
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			err = a.s.ListenAndServe()
		}()

		a.log.Printf("Listening to API http requests on %s:%s", endpoint, port)
	}
	// start https server
	if sslPort != "" && sslCert != "" && sslKey != "" {
		a.ss = &http.Server{
			Handler:      r,
			Addr:         endpoint + ":" + sslPort,
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			errTLS = a.ss.ListenAndServeTLS(sslCert, sslKey)
		}()

		a.log.Printf("Listening to API https requests on %s:%s", endpoint, sslPort)
	}
	// wait for servers to be shutdown
	<-a.sc

	return fmt.Sprintf("shutdown http server:%v, https server:%v", err, errTLS)
}

// limit replies 429 to clients over their request rate.
func (a *App) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !a.limiter.allow(clientKey(r), time.Now()) {
			a.log.Printf("httpreq from %v %s rate limited", r.RemoteAddr, r.RequestURI)
			rw.Header().Set("Content-Type", "application/json;charset=utf8")
			rw.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(rw).Encode(Response{Error: http.StatusText(http.StatusTooManyRequests)})

			return
		}

		next.ServeHTTP(rw, r)
	})
}
