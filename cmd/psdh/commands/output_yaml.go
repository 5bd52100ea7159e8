package commands

import (
	"encoding/json"
	"os"

	"github.com/schaubda/psdatahelper/pkg/psdata"
	"gopkg.in/yaml.v3"
)

func renderRecordSetYAML(records *psdata.RecordSet) error {
	rows := recordSetRows(records)

	// json.Number is a string type, so marshal it to a real number first or
	// the YAML output quotes every numeric value.
	for _, row := range rows {
		for column, value := range row {
			if number, ok := value.(json.Number); ok {
				row[column] = yamlNumber(number)
			}
		}
	}

	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()

	return encoder.Encode(rows)
}

func yamlNumber(number json.Number) any {
	if i, err := number.Int64(); err == nil {
		return i
	}

	if f, err := number.Float64(); err == nil {
		return f
	}

	return number.String()
}
