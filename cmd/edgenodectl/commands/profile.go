package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/edgelink/edgenode/pkg/cli"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved node connection profiles",
}

var profileSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the serve flags given on this invocation as a named profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if store == nil {
			return fmt.Errorf("no config directory available")
		}
		p := &cli.Profile{
			ID:          serveID,
			ConnectType: serveConnectType,
			NodeType:    serveNodeType,
			Host:        serveHost,
			Port:        servePort,
			DestHost:    serveBrokerHost,
			DestPort:    serveBrokerPort,
			Topic:       serveTopic,
		}
		return store.Save(args[0], p)
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if store == nil {
			return fmt.Errorf("no config directory available")
		}
		names, err := store.List()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(dimStyle.Render(name))
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if store == nil {
			return fmt.Errorf("no config directory available")
		}
		p, err := store.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Println(styledLabel("id", p.ID))
		fmt.Println(styledLabel("connect_type", p.ConnectType))
		fmt.Println(styledLabel("node_type", p.NodeType))
		fmt.Println(styledLabel("host", p.Host+":"+strconv.Itoa(p.Port)))
		if p.Topic != "" {
			fmt.Println(styledLabel("topic", p.Topic))
		}
		if p.DestHost != "" {
			fmt.Println(styledLabel("broker", p.DestHost+":"+strconv.Itoa(p.DestPort)))
		}
		return nil
	},
}

func init() {
	f := profileSaveCmd.Flags()
	f.StringVar(&serveConnectType, "connect-type", "tcp", "tcp, mqtt, or hybrid")
	f.StringVar(&serveNodeType, "node-type", "query-server", "query-server, query-client, pub, or sub")
	f.StringVar(&serveHost, "host", "127.0.0.1", "listen host")
	f.IntVar(&servePort, "port", 0, "listen port (0 picks an ephemeral port)")
	f.StringVar(&serveTopic, "topic", "", "mqtt/hybrid topic")
	f.StringVar(&serveBrokerHost, "broker-host", "", "mqtt broker host (mqtt/hybrid)")
	f.IntVar(&serveBrokerPort, "broker-port", 1883, "mqtt broker port (mqtt/hybrid)")
	f.StringVar(&serveID, "id", "edgenodectl-server", "node id")
	profileCmd.AddCommand(profileSaveCmd, profileListCmd, profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}
