/*
Package config loads the server's YAML configuration.

A minimal gateway-backend config:

	app: storefront
	slots:
	  blue:
	    endpoint: 10.0.0.1:8080
	  green:
	    endpoint: 10.0.0.2:8080
	probe:
	  path: /health
	  interval: 10s
	  observationWindow: 2m

And for Kubernetes:

	app: storefront
	backend: kubernetes
	kubernetes:
	  namespace: prod
	slots:
	  blue:
	    endpoint: storefront-blue.prod.svc:8080
	  green:
	    endpoint: storefront-green.prod.svc:8080

Slot endpoints are required for both backends; the prober always
checks slots directly. Probe settings here are defaults; a deployment
request may override any of them per rollout.
*/
package config
