package zdecode

// opcodeGroup identifies which of the five opcode-number spaces an
// instruction belongs to for the purposes of the store/branch/name lookup
// tables below. Long form and the 2OP half of Variable form share one
// space; Short form's 1OP and 0OP halves are separate from each other and
// from VAR; Extended form has its own space.
type opcodeGroup int

const (
	group2OP opcodeGroup = iota
	group1OP
	group0OP
	groupVAR
	groupEXT
)

// storesResult reports whether the given (group, opcode-within-group,
// version) triple stores a result, per the format's fixed table.
func storesResult(g opcodeGroup, opcode byte, version uint8) bool {
	switch g {
	case group2OP:
		switch opcode {
		case 8, 9:
			return true
		}
		if opcode >= 15 && opcode <= 25 {
			return true
		}
		return false
	case group1OP:
		switch opcode {
		case 1, 2, 3, 4, 8, 14:
			return true
		case 15:
			return version < 5
		}
		return false
	case group0OP:
		switch opcode {
		case 5, 6:
			return version == 4
		case 9:
			return version > 4
		}
		return false
	case groupVAR:
		switch opcode {
		case 0, 7, 12, 22, 23, 24:
			return true
		case 4:
			return version > 4
		case 9:
			return version == 6
		}
		return false
	case groupEXT:
		switch opcode {
		case 0, 1, 2, 3, 4, 9, 10, 19, 29:
			return true
		}
		return false
	}
	return false
}

// branches reports whether the given (group, opcode-within-group, version)
// triple reads a branch byte, per the format's fixed table.
func branches(g opcodeGroup, opcode byte, version uint8) bool {
	switch g {
	case group2OP:
		if opcode >= 1 && opcode <= 7 {
			return true
		}
		return opcode == 10
	case group1OP:
		switch opcode {
		case 0, 1, 2:
			return true
		}
		return false
	case group0OP:
		switch opcode {
		case 13, 15:
			return true
		case 5, 6:
			return version < 4
		}
		return false
	case groupVAR:
		switch opcode {
		case 17, 31:
			return true
		}
		return false
	case groupEXT:
		switch opcode {
		case 6, 24, 27:
			return true
		}
		return false
	}
	return false
}

// hasLiteralString reports whether the opcode embeds an inline packed
// string (print, print_ret); only non-extended short-0OP opcodes 2 and 3.
func hasLiteralString(g opcodeGroup, opcode byte) bool {
	return g == group0OP && (opcode == 2 || opcode == 3)
}

var names2OP = [...]string{
	"", "je", "jl", "jg", "dec_chk", "inc_chk", "jin", "test",
	"or", "and", "test_attr", "set_attr", "clear_attr", "store", "insert_obj", "loadw",
	"loadb", "get_prop", "get_prop_addr", "get_next_prop", "add", "sub", "mul", "div",
	"mod", "call_2s", "call_2n", "set_colour", "throw", "", "", "",
}

var names1OP = [...]string{
	"jz", "get_sibling", "get_child", "get_parent", "get_prop_len", "inc", "dec", "print_addr",
	"call_1s", "remove_obj", "print_obj", "ret", "jump", "print_paddr", "load", "not",
}

var names0OP = [...]string{
	"rtrue", "rfalse", "print", "print_ret", "nop", "save", "restore", "restart",
	"ret_popped", "pop", "quit", "new_line", "show_status", "verify", "extended", "piracy",
}

var namesVAR = [...]string{
	"call", "storew", "storeb", "put_prop", "sread", "print_char", "print_num", "random",
	"push", "pull", "split_window", "set_window", "call_vs2", "erase_window", "erase_line", "set_cursor",
	"get_cursor", "set_text_style", "buffer_mode", "output_stream", "input_stream", "sound_effect", "read_char", "scan_table",
	"not", "call_vn", "call_vn2", "tokenise", "encode_text", "copy_table", "print_table", "check_arg_count",
}

var namesEXT = [...]string{
	"save", "restore", "log_shift", "art_shift", "set_font", "draw_picture", "picture_data", "erase_picture",
	"set_margins", "save_undo", "restore_undo", "print_unicode", "check_unicode", "set_true_colour", "", "",
	"move_window", "window_size", "window_style", "get_wind_prop", "scroll_window", "pop_stack", "read_mouse", "mouse_window",
	"push_stack", "put_wind_prop", "print_form", "make_menu", "picture_table", "buffer_screen",
}

func opcodeName(g opcodeGroup, opcode byte, version uint8) string {
	switch g {
	case group2OP:
		if int(opcode) < len(names2OP) {
			return names2OP[opcode]
		}
	case group1OP:
		if int(opcode) < len(names1OP) {
			name := names1OP[opcode]
			if opcode == 15 && version >= 5 {
				return "call_1n"
			}
			return name
		}
	case group0OP:
		if int(opcode) < len(names0OP) {
			if opcode == 9 && version > 4 {
				return "catch"
			}
			return names0OP[opcode]
		}
	case groupVAR:
		if int(opcode) < len(namesVAR) {
			name := namesVAR[opcode]
			if opcode == 4 && version >= 5 {
				return "aread"
			}
			return name
		}
	case groupEXT:
		if int(opcode) < len(namesEXT) {
			return namesEXT[opcode]
		}
	}
	return ""
}
