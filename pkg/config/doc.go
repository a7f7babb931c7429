/*
Package config loads the Stevedore daemon configuration.

Configuration is layered: compiled-in defaults, then an optional YAML file,
then STEVEDORE_-prefixed environment variables. Nesting in environment keys
uses a double underscore so that keys which themselves contain underscores
map cleanly:

	STEVEDORE_SERVER__PORT=9000            -> server.port
	STEVEDORE_SCHEDULER__MAX_RETRIES=1     -> scheduler.max_retries

Example file:

	server:
	  host: 0.0.0.0
	  port: 8780
	log:
	  level: info
	  json: true
	scheduler:
	  filters:
	    - availability_zone
	    - capacity
	    - capabilities
	    - driver
	  weighers:
	    - name: capacity
	      multiplier: 1.0
	    - name: volume_number
	      multiplier: 1.0
	  max_retries: 3
	  ack_timeout: 2m
	  liveness_window: 5m
	  filter_function: "backend.free_capacity > volume.size * 2"
	journal:
	  path: /var/lib/stevedore/journal.db

Validation happens at load time: a zero weigher multiplier, a negative retry
bound, or a non-positive liveness window is rejected before the daemon
starts, while malformed filter_function/goodness_function expressions are
deliberately left to request time so one bad expression cannot keep the
whole scheduler down.
*/
package config
