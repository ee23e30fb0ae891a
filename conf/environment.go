package conf

// environment
type EnvironmentEnum int8

const (
	ExampleEnvironmentEnum EnvironmentEnum = 0x01
	MainnetEnvironmentEnum EnvironmentEnum = 0x02
	TestnetEnvironmentEnum EnvironmentEnum = 0x03
	LocalEnvironmentEnum   EnvironmentEnum = 0x04
)

var SystemEnvironmentEnum = LocalEnvironmentEnum

// ParseEnvironment maps the -env flag onto an environment.
func ParseEnvironment(env string) EnvironmentEnum {
	switch env {
	case "mainnet":
		return MainnetEnvironmentEnum
	case "testnet":
		return TestnetEnvironmentEnum
	case "local":
		return LocalEnvironmentEnum
	default:
		return ExampleEnvironmentEnum
	}
}

func GetYaml() string {
	switch SystemEnvironmentEnum {
	case MainnetEnvironmentEnum:
		return "conf/conf_pro.yaml"
	case TestnetEnvironmentEnum:
		return "conf/conf_test.yaml"
	case LocalEnvironmentEnum:
		return "conf/conf_local.yaml"
	default:
		return "conf/conf_example.yaml"
	}
}
