package config

// ConfigBackend stores non-secret keys: the user defaults domain on macOS,
// a JSON file under XDG_CONFIG_HOME elsewhere. Delete of an absent key is
// not an error.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
