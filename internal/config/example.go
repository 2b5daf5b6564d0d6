package config

// Example is a complete sample configuration, printed by the `config`
// subcommand as a starting point.
const Example = `simulation:
  workers: 10
  requests_per_second: 50
  duration_minutes: 0        # 0 = run until interrupted
  ramp_up_seconds: 30        # admitted rate scales linearly 0 -> target
  request_timeout_seconds: 30

user_types:
  - name: browser
    weight: 6
    requests_per_session: [5, 15]
    think_time_seconds: [1.0, 5.0]
  - name: buyer
    weight: 3
    requests_per_session: [10, 25]
    think_time_seconds: [0.5, 3.0]
  - name: admin
    weight: 1
    requests_per_session: [3, 8]
    think_time_seconds: [2.0, 8.0]

geographic_distribution:
  - region: us-east
    weight: 4
    ip_ranges: ["34.192.0.0/12", "52.0.0.0/11"]
  - region: eu-west
    weight: 3
    ip_ranges: ["34.240.0.0/13"]
  - region: ap-south
    weight: 2

endpoints:
  crud-api:
    base_url: http://localhost:8001
    endpoints:
      - path: /users
        methods: [GET]
        weight: 5
        user_types: [admin]
      - path: /users
        methods: [POST]
        weight: 1
        user_types: [admin]
        payload_generator: create_user
      - path: /products
        methods: [GET]
        weight: 10
      - path: /products/{id}
        methods: [GET]
        weight: 8
        path_generator: product_id
      - path: /products
        methods: [POST]
        weight: 1
        user_types: [admin]
        payload_generator: create_product
  ecommerce-api:
    base_url: http://localhost:8002
    endpoints:
      - path: /cart
        methods: [GET]
        weight: 4
        user_types: [buyer]
      - path: /cart
        methods: [POST]
        weight: 3
        user_types: [buyer]
        payload_generator: add_to_cart
      - path: /cart/{item_id}
        methods: [PUT]
        weight: 1
        user_types: [buyer]
        payload_generator: update_cart_item
        path_generator: cart_item_id
      - path: /checkout
        methods: [POST]
        weight: 1
        user_types: [buyer]
        payload_generator: checkout
      - path: /orders/{id}
        methods: [GET]
        weight: 2
        user_types: [buyer]
        path_generator: order_id

reporting:
  stats_interval_seconds: 10
  detailed_logging: false
  log_level: info
  metrics_listen: ""         # e.g. ":9090" to expose prometheus metrics
  history_dir: ""            # e.g. "~/.trafficsim" to persist run summaries
`
