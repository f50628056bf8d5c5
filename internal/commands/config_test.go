package commands

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/swarmyard/internal/app"
	"github.com/dotcommander/swarmyard/internal/models"
)

func TestSettingsToMap_CoversEveryYAMLTaggedField(t *testing.T) {
	m := settingsToMap(app.EffectiveSettings())
	for _, key := range []string{
		"db_path",
		"core.auto_sync",
		"core.default_priority",
		"queue.stale_timeout_seconds",
		"queue.max_retries",
		"recovery.policy",
		"recovery.log_recovered",
	} {
		_, ok := m[key]
		require.Truef(t, ok, "expected key %q in settings map", key)
	}
}

func TestSetSettingField_Int(t *testing.T) {
	s := app.Settings{}
	require.NoError(t, setSettingField(&s, "core.default_priority", "7"))
	require.Equal(t, 7, s.CoreDefaultPriority)
}

func TestSetSettingField_Bool(t *testing.T) {
	s := app.Settings{}
	require.NoError(t, setSettingField(&s, "core.auto_sync", "true"))
	require.True(t, s.CoreAutoSync)
}

func TestSetSettingField_String(t *testing.T) {
	s := app.Settings{}
	require.NoError(t, setSettingField(&s, "recovery.policy", "strict"))
	require.Equal(t, "strict", s.RecoveryPolicy)
}

func TestSetSettingField_RejectsBadInt(t *testing.T) {
	s := app.Settings{}
	err := setSettingField(&s, "core.default_priority", "not-an-int")
	require.Error(t, err)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestSetSettingField_UnknownKey(t *testing.T) {
	s := app.Settings{}
	err := setSettingField(&s, "nonexistent.key", "x")
	require.Error(t, err)
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestConfigKeySchema_EveryEntryHasAKnownType(t *testing.T) {
	entries := configKeySchema()
	require.NotEmpty(t, entries)
	for _, e := range entries {
		require.NotEmpty(t, e.Key)
		require.Contains(t, []string{"string", "bool", "int"}, e.Type)
	}
}
