package adoption

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// Response defines the data structure returned to the client making the http request.
type Response struct {
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// pageTmpl renders the pets in catalog order. The adopt button of a panel posts to /adopt/{data-id}.
var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Pete's Pet Shop</title></head>
<body>
<h1>Pete's Pet Shop</h1>
<div id="petsRow">
{{- range .}}
<div class="panel panel-pet">
<h3 class="panel-title">{{.Pet.Name}}</h3>
<img alt="{{.Pet.Name}}" src="{{.Pet.Picture}}">
<strong>Breed</strong>: <span class="pet-breed">{{.Pet.Breed}}</span><br>
<strong>Age</strong>: <span class="pet-age">{{.Pet.Age}}</span><br>
<strong>Location</strong>: <span class="pet-location">{{.Pet.Location}}</span><br>
<form method="post" action="/adopt/{{.Pet.ID}}">
<button class="btn-adopt" type="submit" data-id="{{.Pet.ID}}"{{if .Button.Disabled}} disabled{{end}}>{{.Button.Label}}</button>
</form>
</div>
{{- end}}
</div>
</body>
</html>
`))

// homeHandler renders the page.
func (a *App) homeHandler(rw http.ResponseWriter, r *http.Request) {
	a.log.Printf("httpreq from %v %s", r.RemoteAddr, r.RequestURI)

	rw.Header().Set("Content-Type", "text/html;charset=utf8")

	if err := pageTmpl.Execute(rw, a.page.Panels()); err != nil {
		a.log.Printf("Error rendering page:%v", err)
	}
}

// petsHandler replies the page model.
func (a *App) petsHandler(rw http.ResponseWriter, r *http.Request) {
	var res Response

	panels := a.page.Panels()

	tmp, _ := json.Marshal(panels)
	res.Body = string(tmp)

	a.log.Printf("httpreq from %v %s adopted:%d", r.RemoteAddr, r.RequestURI, a.page.Adopted())

	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(rw).Encode(&res)
}

// adoptHandler starts the adoption of the pet in the uri. The adoption runs in the background: API clients get 202
// Accepted and browser forms are redirected to the page.
func (a *App) adoptHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var id int

	form := strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")

	defer func() {
		// log request and pet
		a.log.Printf("httpreq from %v %s pet:%d err:%v", r.RemoteAddr, r.RequestURI, id, err)
		// reply to requester accordingly
		if err == nil && form {
			http.Redirect(rw, r, "/", http.StatusSeeOther)

			return
		}

		rw.Header().Set("Content-Type", "application/json;charset=utf8")

		if err != nil {
			res.Error = err.Error()

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			res.Body = fmt.Sprintf("adoption of pet %d submitted", id)

			rw.WriteHeader(http.StatusAccepted)
		}

		_ = json.NewEncoder(rw).Encode(&res)
	}()

	if id, err = strconv.Atoi(mux.Vars(r)["id"]); err != nil || id < 0 {
		err = fmt.Errorf("%w: %s", ErrBadPet, mux.Vars(r)["id"])

		return
	}

	a.adopt(id)
}

// network describes a network profile.
type network struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	NetworkID string `json:"networkId"`
	Selected  bool   `json:"selected,omitempty"`
}

// networksHandler replies the network profiles available to the service.
func (a *App) networksHandler(rw http.ResponseWriter, r *http.Request) {
	var res Response

	nl := make([]network, 0, len(a.networks))

	for _, name := range a.networks.Names() {
		p, _ := a.networks.Get(name)
		nl = append(nl, network{Name: name, URL: p.URL(), NetworkID: p.NetworkID, Selected: name == a.net})
	}

	tmp, _ := json.Marshal(nl)
	res.Body = string(tmp)

	a.log.Printf("httpreq from %v %s res:%+v", r.RemoteAddr, r.RequestURI, nl)

	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(rw).Encode(&res)
}
