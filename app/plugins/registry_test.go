package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNames_IncludesInfraModules(t *testing.T) {
	assert.Subset(t, Names(KindSink), []string{"nop", "jsonl", "sqlite", "prometheus", "influx", "mqtt"})
	assert.Subset(t, Names(KindDemand), []string{"constant", "schedule", "csv", "mqtt"})
	assert.Subset(t, Names(KindStrategy), []string{"greedy", "lp", "round_robin"})
	assert.Nil(t, Names("other"))
	assert.Len(t, Kinds(), 3)
}
