package conf

// EnvironmentEnum 运行环境，决定读取哪份配置文件
type EnvironmentEnum int8

const (
	ExampleEnvironmentEnum EnvironmentEnum = 0x01
	MainnetEnvironmentEnum EnvironmentEnum = 0x02
	TestnetEnvironmentEnum EnvironmentEnum = 0x03
)

var SystemEnvironmentEnum = ExampleEnvironmentEnum

var configFiles = map[EnvironmentEnum]string{
	ExampleEnvironmentEnum: "conf/conf_example.yaml",
	MainnetEnvironmentEnum: "conf/conf_pro.yaml",
	TestnetEnvironmentEnum: "conf/conf_test.yaml",
}

// ParseEnvironment -env 参数转环境，未知值按 example 处理
func ParseEnvironment(env string) EnvironmentEnum {
	switch env {
	case "mainnet":
		return MainnetEnvironmentEnum
	case "testnet":
		return TestnetEnvironmentEnum
	default:
		return ExampleEnvironmentEnum
	}
}

func GetYaml() string {
	if file, ok := configFiles[SystemEnvironmentEnum]; ok {
		return file
	}
	return configFiles[ExampleEnvironmentEnum]
}
