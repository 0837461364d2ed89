// Package adoption and its sub-packages implement a pet adoption front-end service backed by an Adoption contract
// deployed to an ethereum network.
/*
The service (cmd/adoption) connects to a node, loads the compiled Adoption contract and serves a page with the pets
up for adoption. The adopt button of every pet sends a transaction to the contract and, once it is mined, the
adoptions are read again from the contract so the pet is shown as adopted.

Architecture

A blockchain layer (package lib/block) selects the provider: the one injected by the environment if there is any,
otherwise the JSON-RPC endpoint of the network profile selected in the config (package lib/config, network profiles
are read from a YAML file). Transactions are signed by the node or, when an HD wallet seed is configured, locally
with the derived accounts.

A contract layer (package lib/contract) fetches the compiled contract artifacts from a directory, an HTTP server or
the artifact store (package lib/store, MongoDB or PostgreSQL) and binds the contract deployed to the network the node
is on. Contract events can be watched (package watcher) block by block, detecting reorganisations of the chain.

The adoption service (package adoption) keeps the page model, runs the adoptions and publishes adoption and contract
events to a message broker (package lib/msg), so other instances of the service show adoptions made elsewhere.

The service can be monitored via a Prometheus API by setting the flag "-m" at startup.

Publish

The publish tool (cmd/publish) saves the artifacts of a build directory into the artifact store, so the services can
load them with the "db:" artifacts setting.
*/
package adoption
