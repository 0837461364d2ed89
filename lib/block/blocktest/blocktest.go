// Package blocktest provides a mock ethereum JSON-RPC node for tests.
package blocktest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
)

// HandlerFunc computes the result of a call from its params.
type HandlerFunc func(params []json.RawMessage) (interface{}, error)

// Node is a mock node answering JSON-RPC calls with the results set per method. Calls to methods without a result
// get a "method not found" error.
type Node struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	calls    map[string]int
	srv      *httptest.Server
}

// mockRequest
type mockRequest struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// mockError
type mockError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewNode starts a mock node.
func NewNode() *Node {
	n := &Node{
		handlers: make(map[string]HandlerFunc),
		calls:    make(map[string]int),
	}
	n.srv = httptest.NewServer(http.HandlerFunc(n.handler))

	return n
}

// URL returns the endpoint of the node.
func (n *Node) URL() string {
	return n.srv.URL
}

// Dial returns a provider for the node.
func (n *Node) Dial() (*rpc.Client, error) {
	return rpc.DialHTTP(n.srv.URL)
}

// Close stops the node.
func (n *Node) Close() {
	n.srv.Close()
}

// Set replies result to every call of method. A nil result replies JSON null.
func (n *Node) Set(method string, result interface{}) {
	n.SetFunc(method, func([]json.RawMessage) (interface{}, error) { return result, nil })
}

// SetFunc replies the result of f to every call of method.
func (n *Node) SetFunc(method string, f HandlerFunc) {
	n.mu.Lock()
	n.handlers[method] = f
	n.mu.Unlock()
}

// Calls returns how many times method was called.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls[method]
}

// handler defines the handler function for the mock HTTP server
func (n *Node) handler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	var res interface{}

	if b := bytes.TrimSpace(body); len(b) > 0 && b[0] == '[' {
		var reqs []mockRequest
		if err = json.Unmarshal(b, &reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		batch := make([]map[string]interface{}, 0, len(reqs))
		for _, req := range reqs {
			batch = append(batch, n.reply(req))
		}

		res = batch
	} else {
		var req mockRequest
		if err = json.Unmarshal(b, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		res = n.reply(req)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(res)
}

func (n *Node) reply(req mockRequest) map[string]interface{} {
	res := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}

	n.mu.Lock()
	n.calls[req.Method]++
	f, ok := n.handlers[req.Method]
	n.mu.Unlock()

	if !ok {
		res["error"] = mockError{Code: -32601, Message: "the method " + req.Method + " does not exist/is not available"}

		return res
	}

	var params []json.RawMessage
	if len(req.Params) > 0 && !strings.EqualFold(string(req.Params), "null") {
		_ = json.Unmarshal(req.Params, &params)
	}

	result, err := f(params)
	if err != nil {
		res["error"] = mockError{Code: -32000, Message: err.Error()}

		return res
	}

	res["result"] = result

	return res
}

// Receipt returns a receipt for hash, as a node would reply to eth_getTransactionReceipt. status is 1 for success and
// 0 for a reverted transaction.
func Receipt(hash string, status int) map[string]interface{} {
	st := "0x0"
	if status != 0 {
		st = "0x1"
	}

	return map[string]interface{}{
		"type":              "0x0",
		"blockHash":         "0xd44a255e40eee23bd90a54a792f7a35c175400958de22a9bbfe08a7b2c244ed6",
		"blockNumber":       "0x29bf9b",
		"contractAddress":   nil,
		"cumulativeGasUsed": "0x4fa3d",
		"effectiveGasPrice": "0x98bca5a00",
		"from":              "0xf4cefc8d1afaa51d5a5e7f57d214b60429ca4378",
		"gasUsed":           "0xf67f",
		"logs":              []interface{}{},
		"logsBloom":         "0x" + strings.Repeat("00", 256),
		"status":            st,
		"to":                "0x357dd3856d856197c1a000bbab4abcb97dfc92c4",
		"transactionHash":   hash,
		"transactionIndex":  "0x1",
	}
}

// TxHash returns the hash param (first param) of a call such as eth_getTransactionReceipt.
func TxHash(params []json.RawMessage) string {
	var h string
	if len(params) > 0 {
		_ = json.Unmarshal(params[0], &h)
	}

	return h
}
