package elasticsearch

// dateFormats accepts RFC 5322 header dates as well as ISO-8601 and epoch millis
const dateFormats = "EEE, d MMM yyyy HH:mm:ss Z||strict_date_optional_time||epoch_millis"

// indexBody returns the settings and mappings used when creating the index
func indexBody(shards, replicas int) map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   shards,
			"number_of_replicas": replicas,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"subject": map[string]interface{}{"type": "text"},
				"content": map[string]interface{}{"type": "text"},
				"sender":  map[string]interface{}{"type": "keyword"},
				"folder":  map[string]interface{}{"type": "keyword"},
				"account": map[string]interface{}{"type": "keyword"},
				"date": map[string]interface{}{
					"type":             "date",
					"format":           dateFormats,
					"ignore_malformed": true,
				},
				"spam":       map[string]interface{}{"type": "boolean"},
				"spam_score": map[string]interface{}{"type": "float"},
			},
		},
	}
}
