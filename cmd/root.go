/*
 * matchcast is a project to relay live sports HLS streams to any player.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lucasduport/matchcast/pkg/config"
	"github.com/lucasduport/matchcast/pkg/server"
	"github.com/lucasduport/matchcast/pkg/store"
	"github.com/lucasduport/matchcast/pkg/utils"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "matchcast",
	Short: "HLS relay and ad shield for live sports streams",
	Long: `matchcast relays live sports HLS streams so that any player can
consume them from a single origin.

It supports:
- Manifest and segment proxying with URI rewriting
- Manifest extraction from embed pages
- Match catalog aggregation and per-match stream overrides
- An ad shield for embed pages`,

	Run: func(cmd *cobra.Command, args []string) {
		utils.SetLevel(viper.GetString("log-level"), viper.GetBool("debug-logging"))
		if logFile := viper.GetString("log-file"); logFile != "" {
			if err := utils.SetLogFile(logFile); err != nil {
				log.Fatal(err)
			}
		}
		defer utils.Close()

		conf, err := loadConfig()
		if err != nil {
			log.Fatal(err)
		}

		utils.InfoLog("[matchcast] admin secret: %s, discord webhook: %s",
			conf.AdminSecret.Masked(), utils.MaskURL(conf.DiscordWebhookURL.String()))

		srv, err := server.NewServer(conf)
		if err != nil {
			log.Fatal(err)
		}

		if err := srv.Serve(); err != nil {
			log.Fatal(err)
		}
	},
}

func loadConfig() (*config.ProxyConfig, error) {
	conf := config.Default()

	conf.HostConfig = &config.HostConfiguration{
		Hostname: viper.GetString("hostname"),
		Port:     viper.GetInt("port"),
	}
	conf.PublicBaseURL = viper.GetString("public-base-url")

	conf.Upstream = config.UpstreamConfig{
		StreamedBaseURL:    viper.GetString("streamed-base-url"),
		ReedstreamsBaseURL: viper.GetString("reedstreams-base-url"),
		RequestsPerSecond:  viper.GetInt("upstream-rps"),
		CacheTTL:           viper.GetDuration("upstream-cache-ttl"),
		Timeout:            viper.GetDuration("upstream-timeout"),
	}

	conf.Store = config.StoreConfig{
		Backend:     viper.GetString("store-backend"),
		BoltPath:    viper.GetString("store-bolt-path"),
		PostgresDSN: viper.GetString("store-postgres-dsn"),
	}
	if conf.Store.PostgresDSN == "" {
		conf.Store.PostgresDSN = store.PostgresDSN()
	}

	conf.LDAP = config.LDAPConfig{
		Enabled:        viper.GetBool("ldap-enabled"),
		Server:         viper.GetString("ldap-server"),
		BaseDN:         viper.GetString("ldap-base-dn"),
		BindDN:         viper.GetString("ldap-bind-dn"),
		BindPassword:   config.CredentialString(viper.GetString("ldap-bind-password")),
		UserAttribute:  viper.GetString("ldap-user-attribute"),
		GroupAttribute: viper.GetString("ldap-group-attribute"),
		RequiredGroup:  viper.GetString("ldap-required-group"),
	}
	if conf.LDAP.Enabled && conf.LDAP.Server == "" {
		return nil, fmt.Errorf("ldap is enabled but no ldap-server is set")
	}

	conf.Shield = config.ShieldConfig{
		VideoIframeClass: viper.GetString("shield-video-iframe-class"),
		ZIndexThreshold:  viper.GetInt("shield-zindex-threshold"),
		ExtraPatterns:    viper.GetStringSlice("shield-patterns"),
		ExtraWhitelist:   viper.GetStringSlice("shield-whitelist"),
		AllowedHosts:     viper.GetStringSlice("shield-allowed-hosts"),
	}

	conf.AdminSecret = config.CredentialString(viper.GetString("admin-secret"))
	conf.DiscordWebhookURL = config.CredentialString(viper.GetString("discord-webhook-url"))
	conf.SignedWrapSegments = viper.GetBool("signed-wrap-segments")
	conf.ExtractCacheTTL = viper.GetDuration("extract-cache-ttl")
	conf.WorkerPoolSize = viper.GetInt("worker-pool-size")

	return conf, nil
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.Default()

	// Config file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.matchcast.yaml)")

	// Listener
	rootCmd.Flags().Int("port", defaults.HostConfig.Port, "Listening port")
	rootCmd.Flags().String("hostname", "", "Hostname to listen on")
	rootCmd.Flags().String("public-base-url", "", "Public base URL used in generated links (derived from the request when empty)")

	// Upstreams
	rootCmd.Flags().String("streamed-base-url", defaults.Upstream.StreamedBaseURL, "Match catalog base URL")
	rootCmd.Flags().String("reedstreams-base-url", defaults.Upstream.ReedstreamsBaseURL, "Secondary catalog base URL")
	rootCmd.Flags().Int("upstream-rps", defaults.Upstream.RequestsPerSecond, "Catalog requests per second (0 disables the limit)")
	rootCmd.Flags().Duration("upstream-cache-ttl", defaults.Upstream.CacheTTL, "Catalog response cache TTL (0 disables caching)")
	rootCmd.Flags().Duration("upstream-timeout", defaults.Upstream.Timeout, "Catalog request timeout")

	// Relay
	rootCmd.Flags().Bool("signed-wrap-segments", false, "Route signed manifest URIs back through the signed relay")
	rootCmd.Flags().Duration("extract-cache-ttl", defaults.ExtractCacheTTL, "Extracted manifest cache TTL (0 disables caching)")
	rootCmd.Flags().Int("worker-pool-size", defaults.WorkerPoolSize, "Concurrent catalog lookups")

	// Store
	rootCmd.Flags().String("store-backend", defaults.Store.Backend, "Store backend: memory, bolt or postgres")
	rootCmd.Flags().String("store-bolt-path", "matchcast.db", "Bolt database file")
	rootCmd.Flags().String("store-postgres-dsn", "", "Postgres DSN (built from DB_* variables when empty)")

	// Stream control
	rootCmd.Flags().String("admin-secret", defaults.AdminSecret.String(), "Shared secret for stream control")
	rootCmd.Flags().String("discord-webhook-url", "", "Discord webhook notified on override changes")

	// LDAP authentication flags
	rootCmd.Flags().Bool("ldap-enabled", false, "Enable LDAP authentication for stream control")
	rootCmd.Flags().String("ldap-server", "", "LDAP server URL")
	rootCmd.Flags().String("ldap-base-dn", "", "LDAP base DN")
	rootCmd.Flags().String("ldap-bind-dn", "", "LDAP bind DN")
	rootCmd.Flags().String("ldap-bind-password", "", "LDAP bind password")
	rootCmd.Flags().String("ldap-user-attribute", defaults.LDAP.UserAttribute, "LDAP username attribute")
	rootCmd.Flags().String("ldap-group-attribute", defaults.LDAP.GroupAttribute, "LDAP group attribute")
	rootCmd.Flags().String("ldap-required-group", "", "Required LDAP group")

	// Shield
	rootCmd.Flags().String("shield-video-iframe-class", defaults.Shield.VideoIframeClass, "Class marking the player iframe")
	rootCmd.Flags().Int("shield-zindex-threshold", defaults.Shield.ZIndexThreshold, "z-index from which positioned elements count as overlays")
	rootCmd.Flags().StringSlice("shield-patterns", nil, "Extra ad URL patterns (regular expressions)")
	rootCmd.Flags().StringSlice("shield-whitelist", nil, "Extra whitelisted hosts, subdomains included (literal host names)")
	rootCmd.Flags().StringSlice("shield-allowed-hosts", nil, "Hosts embed pages may navigate to")

	// Logging
	rootCmd.Flags().Bool("debug-logging", false, "Enable debug logging")
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.Flags().String("log-file", "", "Write logs to this file")

	// Bind all flags to viper
	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		log.Fatal("Error binding PFlags to viper")
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	// A missing .env is fine, the process environment still applies.
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment from .env")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".matchcast")
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
