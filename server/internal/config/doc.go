// Package config loads the plantlens server configuration from config.yaml.
//
// Config sections:
//   - server.http_port      port for the REST API and WebSocket hub (default 8080)
//   - server.auth           "apikey" or "none"; key_env names the variable holding the key
//   - server.datasets       retention of caller-owned datasets (ttl default 24h, max_rows)
//   - analysis.parameters   default electricity_price, target_oee and unit_margin
//   - analysis.aliases      extra column synonyms layered on the built-in table
//   - sources               machine exporters that can be collected from on demand
//   - alerts                rules evaluated on every dataset analysis, plus webhooks
//
// Load(path) applies defaults before unmarshalling, then validates. Watch
// reloads the file on change and hands the new Config to a callback.
package config
