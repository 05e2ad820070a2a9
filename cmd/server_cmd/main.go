package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/stablemesh-io/cctp-bridge-go/cmd"
	"github.com/stablemesh-io/cctp-bridge-go/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "BRIDGE_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Bridge server configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Bridge server configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	success := initializeViper(_config_file)
	if !success {
		return
	}

	// Make the configuration
	bsc := PrepareBridgeServerConfig()
	if bsc == nil {
		fmt.Printf("Error loading bridge server configuration\n")
		return
	}

	logconfig.ConfigByName(bsc.LogPreset)

	fmt.Println("Starting bridge server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartBridgeServerAndWait(bsc)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareBridgeServerConfig reads configuration variables and returns a BridgeServerConfig.
func PrepareBridgeServerConfig() *cmd.BridgeServerConfig {
	return &cmd.BridgeServerConfig{
		// wallet engine side
		EngineBaseURL:     viper.GetString("ENGINE_BASE_URL"),
		EngineAccessToken: viper.GetString("ENGINE_ACCESS_TOKEN"),
		BackendWalletAddr: viper.GetString("BACKEND_WALLET_ADDR"),
		// attestation side
		AttestationBaseURL: viper.GetString("ATTESTATION_BASE_URL"),
		AttestationAPIKey:  viper.GetString("ATTESTATION_API_KEY"),
		// journal side
		DbFilePath: viper.GetString("DB_FILE_PATH"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
		// logging
		LogPreset: viper.GetString("LOG_PRESET"),
	}
}
