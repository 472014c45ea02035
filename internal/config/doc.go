// Package config provides configuration management for rpcexpose.
//
// Configuration is read from a single YAML file. A missing file is not an
// error: every section falls back to its default, so a bare
//
//	rpcexpose serve
//
// starts the demo services on localhost:8080.
//
// # File Format
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	  basePath: /api
//	  shutdownTimeout: 15s
//	exposure:
//	  defaultMethod: inferFromName
//	  prefix: v1
//	  lazyCompile: false
//	  activation: perCall
//	  headers:
//	    - name: X-Api-Version
//	      value: '{{ env "APP_VERSION" | default "dev" }}'
//	authorization:
//	  mode: aggregate
//	  roleHeader: X-Roles
//	  userHeader: X-User
//	  policies:
//	    math-user: '"math" in principal.roles || principal.subject == "root"'
//	metrics:
//	  enabled: true
//	  path: /metrics
//	mcp:
//	  enabled: true
//	  path: /mcp
//	logging:
//	  level: info
//	  format: text
//
// Header values are Go templates with the sprig function library and are
// rendered once while loading.
//
// # Validation
//
// Validate reports every problem it finds as a ConfigurationErrorCollection
// rather than stopping at the first one.
package config
