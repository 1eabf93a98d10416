package logx

import (
	"encoding/json"
	"time"
)

// JSONFormatter formats logs as one JSON object per line
type JSONFormatter struct {
	config *Config
	// cloudwatch switches key names to msg/time as CloudWatch Insights expects
	cloudwatch bool
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(config *Config) *JSONFormatter {
	return &JSONFormatter{config: config}
}

// NewCloudWatchFormatter creates a JSON formatter with CloudWatch key names
func NewCloudWatchFormatter(config *Config) *JSONFormatter {
	return &JSONFormatter{config: config, cloudwatch: true}
}

// Format formats a log entry as JSON
func (f *JSONFormatter) Format(entry *LogEntry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Fields)+6)

	for k, v := range entry.Fields {
		data[k] = v
	}

	data["level"] = entry.Level.String()
	if f.cloudwatch {
		data["msg"] = entry.Message
		data["time"] = entry.Timestamp.Format(time.RFC3339Nano)
	} else {
		data["message"] = entry.Message
		if f.config.EnableTimestamp {
			switch f.config.TimeFormat {
			case "unix":
				data["timestamp"] = entry.Timestamp.Unix()
			case "unixmilli":
				data["timestamp"] = entry.Timestamp.UnixMilli()
			default:
				data["timestamp"] = entry.Timestamp.Format(time.RFC3339Nano)
			}
		}
	}

	if f.config.EnableCaller && entry.Caller != "" {
		data["caller"] = entry.Caller
	}
	if entry.Error != nil {
		data["error"] = entry.Error.Error()
	}
	if entry.Data != nil {
		data["data"] = entry.Data
	}

	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(bytes, '\n'), nil
}
