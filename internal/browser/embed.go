package browser

import _ "embed"

//go:embed assets/init.js
var initScript string
