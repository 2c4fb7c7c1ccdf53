// Package mqttproto is a small, dependency-free MQTT 3.1.1 client and
// broker used to back the in-process test broker and the mqttlink.Proto
// backend. It supports QoS 0 and QoS 1 publish, retained messages, and
// wildcard subscriptions over plain TCP or TLS.
//
// It deliberately does not implement MQTT 5.0, WebSocket transport,
// shared subscriptions, or $SYS event publishing — none of those are
// needed by an edge node on a LAN, and mqttlink.Paho covers them for
// callers that want a production broker.
//
// # Example - Client
//
//	client, err := mqttproto.Connect(ctx, mqttproto.ClientConfig{
//	    Addr:     "tcp://127.0.0.1:1883",
//	    ClientID: "my-client",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Subscribe(ctx, "edge/inference/+/discovery/"); err != nil {
//	    log.Fatal(err)
//	}
//
//	msg, err := client.Recv(ctx)
//
// # Example - Broker
//
//	broker := &mqttproto.Broker{
//	    Authenticator: myAuthenticator,
//	    OnConnect:     func(clientID string) { log.Printf("connected: %s", clientID) },
//	}
//
//	ln, err := mqttproto.Listen("tcp", ":1883", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(broker.Serve(ln))
package mqttproto
