package security

import "strings"

// Hard-excluded identifiers. These cover dynamic code execution, process
// execution, filesystem access, network and database access, runtime
// reflection, object construction, and ambient request/environment state.
// They are rejected regardless of configuration: extra_allowed_functions
// entries matching them are dropped at policy construction, and IsAllowed
// returns false for them even if an operator lists them.
var hardExcluded = map[string]struct{}{
	// dynamic code execution
	"eval": {}, "assert": {}, "create_function": {},
	"call_user_func": {}, "call_user_func_array": {},
	"include": {}, "include_once": {}, "require": {}, "require_once": {},
	"preg_replace_callback": {}, "array_map": {}, "array_filter": {},
	"array_walk": {}, "usort": {}, "uasort": {}, "uksort": {},
	// process execution
	"exec": {}, "system": {}, "shell_exec": {}, "passthru": {},
	"popen": {}, "pclose": {},
	// filesystem
	"fopen": {}, "fclose": {}, "fread": {}, "fwrite": {}, "fgets": {},
	"file": {}, "file_get_contents": {}, "file_put_contents": {},
	"file_exists": {}, "readfile": {}, "unlink": {}, "rename": {},
	"copy": {}, "mkdir": {}, "rmdir": {}, "chmod": {}, "chown": {},
	"glob": {}, "scandir": {}, "opendir": {}, "readdir": {},
	"tempnam": {}, "tmpfile": {}, "symlink": {}, "touch": {},
	// network
	"fsockopen": {}, "pfsockopen": {}, "gethostbyname": {}, "dns_get_record": {},
	// reflection / introspection of the runtime
	"get_defined_vars": {}, "get_defined_functions": {}, "get_class_methods": {},
	"function_exists": {}, "method_exists": {}, "class_exists": {},
	"get_class": {}, "get_object_vars": {}, "debug_backtrace": {},
	// serialization (object construction via payload)
	"serialize": {}, "unserialize": {},
	// ambient environment / request state
	"getenv": {}, "putenv": {}, "apache_getenv": {}, "apache_setenv": {},
	"extract": {}, "compact": {}, "ini_get": {}, "ini_set": {},
	"phpinfo": {}, "php_uname": {},
	// misc escape hatches
	"dl": {}, "header": {}, "setcookie": {}, "session_start": {},
}

// hardExcludedPrefixes block whole function families by name prefix.
var hardExcludedPrefixes = []string{
	"pcntl_", "posix_", "proc_",
	"curl_", "socket_", "stream_", "ftp_", "ssh2_",
	"mysqli_", "mysql_", "pg_", "sqlite_", "sqlsrv_", "odbc_", "oci_", "pdo",
	"ldap_", "imap_", "mail",
	"reflection", "runkit", "filter_input",
	"apcu_", "shmop_", "sem_", "msg_",
}

// isHardExcluded reports whether a lowercase identifier falls into one of
// the never-allowable families.
func isHardExcluded(name string) bool {
	if _, blocked := hardExcluded[name]; blocked {
		return true
	}
	for _, prefix := range hardExcludedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
